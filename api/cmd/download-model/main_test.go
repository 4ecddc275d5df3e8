package main

import "testing"

func TestRootFlags(t *testing.T) {
	t.Setenv("MODELS_DIR", "/data/models")
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--lang", "en", "--recognize"}); err != nil {
		t.Fatal(err)
	}
	langs, _ := cmd.Flags().GetStringSlice("lang")
	if len(langs) != 1 || langs[0] != "en" {
		t.Fatalf("lang = %v", langs)
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "/data/models" {
		t.Fatalf("dir = %q", dir)
	}
	if det, _ := cmd.Flags().GetBool("detect"); det {
		t.Fatal("detect must default to false")
	}
	if rec, _ := cmd.Flags().GetBool("recognize"); !rec {
		t.Fatal("recognize not parsed")
	}
}

func TestDefaultLangOrder(t *testing.T) {
	langs, _ := newRootCmd().Flags().GetStringSlice("lang")
	if len(langs) != 2 || langs[0] != "ru" || langs[1] != "en" {
		t.Fatalf("default langs = %v", langs)
	}
}
