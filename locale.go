// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"fmt"

	"golang.org/x/text/language"
)

// Locale is the Windows language identifier stored with each hash table entry.
type Locale uint16

// Locales found in shipped archives.
const (
	LocaleNeutral    Locale = 0x000
	LocaleChineseTW  Locale = 0x404
	LocaleCzech      Locale = 0x405
	LocaleGerman     Locale = 0x407
	LocaleEnglishUS  Locale = 0x409
	LocaleSpanish    Locale = 0x40A
	LocaleFrench     Locale = 0x40C
	LocaleItalian    Locale = 0x410
	LocaleJapanese   Locale = 0x411
	LocaleKorean     Locale = 0x412
	LocalePolish     Locale = 0x415
	LocalePortuguese Locale = 0x416
	LocaleRussian    Locale = 0x419
	LocaleChineseCN  Locale = 0x804
	LocaleEnglishUK  Locale = 0x809
	LocaleSpanishMX  Locale = 0x80A
)

// knownLocales is ordered by identifier. ParseLocale offers the tags to the
// matcher in this order, so the lower identifier wins a tie.
var knownLocales = []struct {
	locale Locale
	tag    language.Tag
}{
	{LocaleNeutral, language.Und},
	{LocaleChineseTW, language.MustParse("zh-TW")},
	{LocaleCzech, language.MustParse("cs-CZ")},
	{LocaleGerman, language.MustParse("de-DE")},
	{LocaleEnglishUS, language.MustParse("en-US")},
	{LocaleSpanish, language.MustParse("es-ES")},
	{LocaleFrench, language.MustParse("fr-FR")},
	{LocaleItalian, language.MustParse("it-IT")},
	{LocaleJapanese, language.MustParse("ja-JP")},
	{LocaleKorean, language.MustParse("ko-KR")},
	{LocalePolish, language.MustParse("pl-PL")},
	{LocalePortuguese, language.MustParse("pt-BR")},
	{LocaleRussian, language.MustParse("ru-RU")},
	{LocaleChineseCN, language.MustParse("zh-CN")},
	{LocaleEnglishUK, language.MustParse("en-GB")},
	{LocaleSpanishMX, language.MustParse("es-MX")},
}

var localeTags = func() map[Locale]language.Tag {
	m := make(map[Locale]language.Tag, len(knownLocales))
	for _, k := range knownLocales {
		m[k.locale] = k.tag
	}
	return m
}()

// Tag returns the BCP 47 tag of l, or language.Und when l is neutral or unknown.
func (l Locale) Tag() language.Tag {
	if tag, ok := localeTags[l]; ok {
		return tag
	}
	return language.Und
}

func (l Locale) String() string {
	if l == LocaleNeutral {
		return "neutral"
	}
	if tag, ok := localeTags[l]; ok {
		return tag.String()
	}
	return fmt.Sprintf("0x%04X", uint16(l))
}

// ParseLocale maps a BCP 47 tag such as "de-DE" to its Locale. The empty
// string and "neutral" map to LocaleNeutral. A tag without an exact entry is
// matched to the closest known locale.
func ParseLocale(s string) (Locale, error) {
	if s == "" || s == "neutral" {
		return LocaleNeutral, nil
	}

	tag, err := language.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse locale %q: %w", s, err)
	}

	for _, k := range knownLocales {
		if k.tag == tag {
			return k.locale, nil
		}
	}

	supported := make([]language.Tag, 0, len(knownLocales))
	byIndex := make([]Locale, 0, len(knownLocales))
	for _, k := range knownLocales {
		if k.locale == LocaleNeutral {
			continue
		}
		supported = append(supported, k.tag)
		byIndex = append(byIndex, k.locale)
	}
	_, index, confidence := language.NewMatcher(supported).Match(tag)
	if confidence == language.No {
		return 0, fmt.Errorf("no MPQ locale for %q", s)
	}
	return byIndex[index], nil
}
