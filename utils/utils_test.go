package utils

import (
	"strings"
	"testing"
)

func TestCheckTruth(t *testing.T) {
	checkTruthTests := []struct {
		v   string
		out bool
	}{
		{"123", true},
		{"true", true},
		{"", false},
		{"false", false},
		{"False", false},
		{"FALSE", false},
	}

	for _, test := range checkTruthTests {
		t.Run(test.v, func(t *testing.T) {
			if out := CheckTruth(test.v); out != test.out {
				t.Errorf("CheckTruth(%s) want: %t, got: %t", test.v, test.out, out)
			}
		})
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"crud", "schemas"}, "crud") {
		t.Errorf("Contains should find existing element")
	}
	if Contains([]string{"crud"}, "all") {
		t.Errorf("Contains should not find missing element")
	}
}

func TestToString(t *testing.T) {
	if ToString(int64(42)) != "42" {
		t.Errorf("ToString(int64) failed")
	}
	if ToString("x") != "x" {
		t.Errorf("ToString(string) failed")
	}
	if ToString(true) != "true" {
		t.Errorf("ToString(bool) failed")
	}
}

func TestParseTagSetting(t *testing.T) {
	settings := ParseTagSetting(`column:user_name;default:a\;b;unique`, ";")
	if settings["COLUMN"] != "user_name" {
		t.Errorf("column setting not parsed, got %q", settings["COLUMN"])
	}
	if settings["DEFAULT"] != "a;b" {
		t.Errorf("escaped separator not merged, got %q", settings["DEFAULT"])
	}
	if settings["UNIQUE"] != "UNIQUE" {
		t.Errorf("bare key should map to itself, got %q", settings["UNIQUE"])
	}
}

func TestParseTagSettingTrailingBackslash(t *testing.T) {
	settings := ParseTagSetting(`default:a\`, ";")
	if settings["DEFAULT"] != `a\` {
		t.Errorf("trailing backslash should stay literal, got %q", settings["DEFAULT"])
	}

	settings = ParseTagSetting(`regex:^\d+\`, ";")
	if settings["REGEX"] != `^\d+\` {
		t.Errorf("trailing backslash should stay literal, got %q", settings["REGEX"])
	}
}

func TestFileWithLineNum(t *testing.T) {
	if got := FileWithLineNum(); !strings.Contains(got, ":") {
		t.Errorf("FileWithLineNum should return file:line, got %q", got)
	}
}
