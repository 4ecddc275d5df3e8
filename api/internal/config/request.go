package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// RequestConfig drives cmd/req. Values come from an optional YAML file and are
// then overridden by OCR_API_URL, OCR_IMAGE_PATH and OCR_LANG.
type RequestConfig struct {
	APIURL    string `yaml:"api_url"`
	ImagePath string `yaml:"image_path"`
	Lang      string `yaml:"lang"`
}

func LoadRequest(path string) (*RequestConfig, error) {
	pc := &RequestConfig{ImagePath: "receipt.png", Lang: "ru"}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// файл необязателен
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, pc); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	pc.APIURL = getEnv("OCR_API_URL", pc.APIURL)
	pc.ImagePath = getEnv("OCR_IMAGE_PATH", pc.ImagePath)
	pc.Lang = getEnv("OCR_LANG", pc.Lang)
	return pc, nil
}

func (pc *RequestConfig) Validate() error {
	if pc.APIURL == "" {
		return errors.New("api url is empty: set OCR_API_URL, api_url in the config file or --url")
	}
	if pc.ImagePath == "" {
		return errors.New("image path is empty")
	}
	return nil
}
