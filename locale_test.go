// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"testing"

	"golang.org/x/text/language"
)

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in   string
		want Locale
	}{
		{"", LocaleNeutral},
		{"neutral", LocaleNeutral},
		{"de-DE", LocaleGerman},
		{"en-US", LocaleEnglishUS},
		{"en-GB", LocaleEnglishUK},
		{"ko-KR", LocaleKorean},
		{"zh-TW", LocaleChineseTW},
		{"de", LocaleGerman},
		{"ru", LocaleRussian},
		{"en", LocaleEnglishUS},
		{"es", LocaleSpanish},
		{"zh", LocaleChineseCN},
	}
	for _, test := range tests {
		got, err := ParseLocale(test.in)
		if err != nil {
			t.Errorf("ParseLocale(%q): %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseLocale(%q) = %v, want %v", test.in, got, test.want)
		}
	}

	if _, err := ParseLocale("not a tag!"); err == nil {
		t.Error("ParseLocale accepted an invalid tag")
	}
}

func TestParseLocaleStable(t *testing.T) {
	for _, in := range []string{"en", "es", "zh", "pt"} {
		first, err := ParseLocale(in)
		if err != nil {
			t.Fatalf("ParseLocale(%q): %v", in, err)
		}
		for i := 0; i < 50; i++ {
			if got, _ := ParseLocale(in); got != first {
				t.Fatalf("ParseLocale(%q) = %v, then %v", in, first, got)
			}
		}
	}
}

func TestLocaleString(t *testing.T) {
	tests := []struct {
		l    Locale
		want string
	}{
		{LocaleNeutral, "neutral"},
		{LocaleGerman, "de-DE"},
		{LocaleEnglishUS, "en-US"},
		{Locale(0x0C0A), "0x0C0A"},
	}
	for _, test := range tests {
		if got := test.l.String(); got != test.want {
			t.Errorf("Locale(0x%X).String() = %q, want %q", uint16(test.l), got, test.want)
		}
	}

	if LocaleFrench.Tag() != language.MustParse("fr-FR") {
		t.Errorf("LocaleFrench.Tag() = %v", LocaleFrench.Tag())
	}
	if Locale(0x0C0A).Tag() != language.Und {
		t.Errorf("unknown locale tag = %v", Locale(0x0C0A).Tag())
	}
}
