package ocr

import (
	"os"
	"strings"
)

type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "cuda"
)

// nvidiaDevice is a var so tests can point it elsewhere.
var nvidiaDevice = "/dev/nvidiactl"

// DetectDevice reports whether a CUDA device is visible to the process. It is
// called once at startup; /healthz reports the answer in X-OCR-Device.
func DetectDevice() Device {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return DeviceCPU
		}
	}
	if _, err := os.Stat(nvidiaDevice); err == nil {
		return DeviceGPU
	}
	return DeviceCPU
}
