// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Character encodings: the built-in single-byte encoding tables, a working
// subset of the Adobe Glyph List, and text-string decoding helpers.

package xtract

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// noRune marks an unmapped code. Callers emit U+FFFD for it.
const noRune = '�'

// isUTF16 reports whether s carries the big-endian UTF-16 byte order mark.
func isUTF16(s string) bool {
	return len(s) >= 2 && s[0] == 0xfe && s[1] == 0xff && len(s)%2 == 0
}

var utf16BEDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// utf16Decode converts big-endian UTF-16 bytes (without BOM) to UTF-8.
// Malformed sequences decode to U+FFFD.
func utf16Decode(s string) string {
	out, err := utf16BEDecoder.NewDecoder().String(s)
	if err != nil {
		return string(noRune)
	}
	return out
}

// isPDFDocEncoded reports whether every byte of s has a PDFDocEncoding
// mapping, meaning Text should decode it with pdfDocDecode.
func isPDFDocEncoded(s string) bool {
	if isUTF16(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if pdfDocEncoding[s[i]] == 0 {
			return false
		}
	}
	return true
}

func pdfDocDecode(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || pdfDocEncoding[s[i]] != rune(s[i]) {
			goto Decode
		}
	}
	return s

Decode:
	r := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		r[i] = pdfDocEncoding[s[i]]
	}
	return string(r)
}

// nameToUnicode translates a glyph name to its Unicode expansion using the
// Adobe Glyph List conventions: direct lookup, then the uniXXXX and uXXXX
// forms. Unknown names yield the empty string.
func nameToUnicode(glyph string) string {
	if r, ok := nameToRune[glyph]; ok {
		return string(r)
	}
	// AGL algorithmic names.
	if strings.HasPrefix(glyph, "uni") && len(glyph) >= 7 {
		var runes []rune
		hex := glyph[3:]
		for len(hex) >= 4 {
			v, err := strconv.ParseUint(hex[:4], 16, 32)
			if err != nil {
				return ""
			}
			runes = append(runes, rune(v))
			hex = hex[4:]
		}
		if len(hex) != 0 {
			return ""
		}
		return string(runes)
	}
	if strings.HasPrefix(glyph, "u") && len(glyph) >= 5 && len(glyph) <= 7 {
		v, err := strconv.ParseUint(glyph[1:], 16, 32)
		if err != nil {
			return ""
		}
		return string(rune(v))
	}
	return ""
}

// baseEncodingTable returns the table for a named base encoding, or nil when
// the name is not one of the built-in encodings.
func baseEncodingTable(encName string) *[256]rune {
	switch encName {
	case "WinAnsiEncoding":
		return &winAnsiEncoding
	case "MacRomanEncoding":
		return &macRomanEncoding
	case "StandardEncoding":
		return &standardEncoding
	case "MacExpertEncoding":
		return &macExpertEncoding
	case "PDFDocEncoding":
		return &pdfDocEncoding
	}
	return nil
}

// winAnsiEncoding maps WinAnsiEncoding (Windows code page 1252) bytes to
// Unicode.
var winAnsiEncoding = [256]rune{
	0x20: ' ', '!', '"', '#', '$', '%', '&', '\'',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'@', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', '[', '\\', ']', '^', '_',
	'`', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', '{', '|', '}', '~', 0,
	0x80: '€', 0, '‚', 'ƒ', '„', '…', '†', '‡',
	'ˆ', '‰', 'Š', '‹', 'Œ', 0, 'Ž', 0,
	0, '‘', '’', '“', '”', '•', '–', '—',
	'˜', '™', 'š', '›', 'œ', 0, 'ž', 'Ÿ',
	' ', '¡', '¢', '£', '¤', '¥', '¦', '§',
	'¨', '©', 'ª', '«', '¬', '­', '®', '¯',
	'°', '±', '²', '³', '´', 'µ', '¶', '·',
	'¸', '¹', 'º', '»', '¼', '½', '¾', '¿',
	'À', 'Á', 'Â', 'Ã', 'Ä', 'Å', 'Æ', 'Ç',
	'È', 'É', 'Ê', 'Ë', 'Ì', 'Í', 'Î', 'Ï',
	'Ð', 'Ñ', 'Ò', 'Ó', 'Ô', 'Õ', 'Ö', '×',
	'Ø', 'Ù', 'Ú', 'Û', 'Ü', 'Ý', 'Þ', 'ß',
	'à', 'á', 'â', 'ã', 'ä', 'å', 'æ', 'ç',
	'è', 'é', 'ê', 'ë', 'ì', 'í', 'î', 'ï',
	'ð', 'ñ', 'ò', 'ó', 'ô', 'õ', 'ö', '÷',
	'ø', 'ù', 'ú', 'û', 'ü', 'ý', 'þ', 'ÿ',
}

// macRomanEncoding maps MacRomanEncoding bytes to Unicode.
var macRomanEncoding = [256]rune{
	0x20: ' ', '!', '"', '#', '$', '%', '&', '\'',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'@', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', '[', '\\', ']', '^', '_',
	'`', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', '{', '|', '}', '~', 0,
	0x80: 'Ä', 'Å', 'Ç', 'É', 'Ñ', 'Ö', 'Ü', 'á',
	'à', 'â', 'ä', 'ã', 'å', 'ç', 'é', 'è',
	'ê', 'ë', 'í', 'ì', 'î', 'ï', 'ñ', 'ó',
	'ò', 'ô', 'ö', 'õ', 'ú', 'ù', 'û', 'ü',
	'†', '°', '¢', '£', '§', '•', '¶', 'ß',
	'®', '©', '™', '´', '¨', '≠', 'Æ', 'Ø',
	'∞', '±', '≤', '≥', '¥', 'µ', '∂', '∑',
	'∏', 'π', '∫', 'ª', 'º', 'Ω', 'æ', 'ø',
	'¿', '¡', '¬', '√', 'ƒ', '≈', '∆', '«',
	'»', '…', ' ', 'À', 'Ã', 'Õ', 'Œ', 'œ',
	'–', '—', '“', '”', '‘', '’', '÷', '◊',
	'ÿ', 'Ÿ', '⁄', '€', '‹', '›', 'ﬁ', 'ﬂ',
	'‡', '·', '‚', '„', '‰', 'Â', 'Ê', 'Á',
	'Ë', 'È', 'Í', 'Î', 'Ï', 'Ì', 'Ó', 'Ô',
	'', 'Ò', 'Ú', 'Û', 'Ù', 'ı', 'ˆ', '˜',
	'¯', '˘', '˙', '˚', '¸', '˝', '˛', 'ˇ',
}

// standardEncoding maps Adobe StandardEncoding bytes to Unicode.
var standardEncoding = [256]rune{
	0x20: ' ', '!', '"', '#', '$', '%', '&', '’',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'@', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', '[', '\\', ']', '^', '_',
	'‘', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', '{', '|', '}', '~', 0,
	0xA1: '¡', '¢', '£', '⁄', '¥', 'ƒ', '§',
	'¤', '\'', '“', '«', '‹', '›', 'ﬁ', 'ﬂ',
	0xB1: '–', '†', '‡', '·',
	0xB6: '¶', '•',
	'‚', '„', '”', '»', '…', '‰',
	0xBF: '¿',
	0xC1: '`', '´', 'ˆ', '˜', '¯', '˘', '˙',
	'¨',
	0xCA: '˚', '¸',
	0xCD: '˝', '˛', 'ˇ',
	0xD0: '—',
	0xE1: 'Æ',
	0xE3: 'ª',
	0xE8: 'Ł', 'Ø', 'Œ', 'º',
	0xF1: 'æ',
	0xF5: 'ı',
	0xF8: 'ł', 'ø', 'œ', 'ß',
}

// macExpertEncoding maps the text-bearing slots of MacExpertEncoding to
// Unicode. The expert set is mostly small caps and figure variants; slots
// with no sensible Unicode text expansion are left unmapped.
var macExpertEncoding = [256]rune{
	0x20: ' ',
	0x27: '’',
	0x2C: ',',
	0x2D: '-',
	0x2E: '.',
	0x2F: '⁄',
	// Oldstyle figures.
	0x30: '0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
	0x3A: ':', ';',
	0x3F: '?',
	0x56: 'ﬀ', // ff
	0x57: 'ﬁ', // fi
	0x58: 'ﬂ', // fl
	0x59: 'ﬃ', // ffi
	0x5A: 'ﬄ', // ffl
	0x60: '‘',
	0x61: '½', // onehalf
	0x62: '¼', // onequarter
	0x63: '¾', // threequarters
	0xF1: 'æ',
}

// pdfDocEncoding maps PDFDocEncoding bytes to Unicode, used for text
// strings in document metadata.
var pdfDocEncoding = [256]rune{
	0x18: '˘', 'ˇ', 'ˆ', '˙', '˝', '˛', '˚', '¸',
	0x20: ' ', '!', '"', '#', '$', '%', '&', '\'',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'@', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', '[', '\\', ']', '^', '_',
	'`', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', '{', '|', '}', '~', 0,
	0x80: '•', '†', '‡', '…', '—', '–', 'ƒ', '⁄',
	'‹', '›', '−', '‰', '„', '“', '”', '‘',
	'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š',
	'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', 0,
	0xA0: '€', '¡', '¢', '£', '¤', '¥', '¦', '§',
	'¨', '©', 'ª', '«', '¬', 0, '®', '¯',
	'°', '±', '²', '³', '´', 'µ', '¶', '·',
	'¸', '¹', 'º', '»', '¼', '½', '¾', '¿',
	'À', 'Á', 'Â', 'Ã', 'Ä', 'Å', 'Æ', 'Ç',
	'È', 'É', 'Ê', 'Ë', 'Ì', 'Í', 'Î', 'Ï',
	'Ð', 'Ñ', 'Ò', 'Ó', 'Ô', 'Õ', 'Ö', '×',
	'Ø', 'Ù', 'Ú', 'Û', 'Ü', 'Ý', 'Þ', 'ß',
	'à', 'á', 'â', 'ã', 'ä', 'å', 'æ', 'ç',
	'è', 'é', 'ê', 'ë', 'ì', 'í', 'î', 'ï',
	'ð', 'ñ', 'ò', 'ó', 'ô', 'õ', 'ö', '÷',
	'ø', 'ù', 'ú', 'û', 'ü', 'ý', 'þ', 'ÿ',
}

// nameToRune is the subset of the Adobe Glyph List needed to translate the
// glyph names that occur in the built-in encodings and common /Differences
// arrays. Names outside the list fall through to the uniXXXX/uXXXX forms in
// nameToUnicode.
var nameToRune = map[string]rune{
	"A": 'A', "B": 'B', "C": 'C', "D": 'D', "E": 'E', "F": 'F', "G": 'G',
	"H": 'H', "I": 'I', "J": 'J', "K": 'K', "L": 'L', "M": 'M', "N": 'N',
	"O": 'O', "P": 'P', "Q": 'Q', "R": 'R', "S": 'S', "T": 'T', "U": 'U',
	"V": 'V', "W": 'W', "X": 'X', "Y": 'Y', "Z": 'Z',
	"a": 'a', "b": 'b', "c": 'c', "d": 'd', "e": 'e', "f": 'f', "g": 'g',
	"h": 'h', "i": 'i', "j": 'j', "k": 'k', "l": 'l', "m": 'm', "n": 'n',
	"o": 'o', "p": 'p', "q": 'q', "r": 'r', "s": 's', "t": 't', "u": 'u',
	"v": 'v', "w": 'w', "x": 'x', "y": 'y', "z": 'z',

	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',

	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "asciicircum": '^',
	"underscore": '_', "grave": '`', "braceleft": '{', "bar": '|',
	"braceright": '}', "asciitilde": '~',

	"exclamdown": '¡', "cent": '¢', "sterling": '£',
	"currency": '¤', "yen": '¥', "brokenbar": '¦',
	"section": '§', "dieresis": '¨', "copyright": '©',
	"ordfeminine": 'ª', "guillemotleft": '«',
	"logicalnot": '¬', "registered": '®', "macron": '¯',
	"degree": '°', "plusminus": '±', "twosuperior": '²',
	"threesuperior": '³', "acute": '´', "mu": 'µ',
	"paragraph": '¶', "periodcentered": '·', "cedilla": '¸',
	"onesuperior": '¹', "ordmasculine": 'º',
	"guillemotright": '»', "onequarter": '¼', "onehalf": '½',
	"threequarters": '¾', "questiondown": '¿',

	"Agrave": 'À', "Aacute": 'Á', "Acircumflex": 'Â',
	"Atilde": 'Ã', "Adieresis": 'Ä', "Aring": 'Å',
	"AE": 'Æ', "Ccedilla": 'Ç', "Egrave": 'È',
	"Eacute": 'É', "Ecircumflex": 'Ê', "Edieresis": 'Ë',
	"Igrave": 'Ì', "Iacute": 'Í', "Icircumflex": 'Î',
	"Idieresis": 'Ï', "Eth": 'Ð', "Ntilde": 'Ñ',
	"Ograve": 'Ò', "Oacute": 'Ó', "Ocircumflex": 'Ô',
	"Otilde": 'Õ', "Odieresis": 'Ö', "multiply": '×',
	"Oslash": 'Ø', "Ugrave": 'Ù', "Uacute": 'Ú',
	"Ucircumflex": 'Û', "Udieresis": 'Ü', "Yacute": 'Ý',
	"Thorn": 'Þ', "germandbls": 'ß',
	"agrave": 'à', "aacute": 'á', "acircumflex": 'â',
	"atilde": 'ã', "adieresis": 'ä', "aring": 'å',
	"ae": 'æ', "ccedilla": 'ç', "egrave": 'è',
	"eacute": 'é', "ecircumflex": 'ê', "edieresis": 'ë',
	"igrave": 'ì', "iacute": 'í', "icircumflex": 'î',
	"idieresis": 'ï', "eth": 'ð', "ntilde": 'ñ',
	"ograve": 'ò', "oacute": 'ó', "ocircumflex": 'ô',
	"otilde": 'õ', "odieresis": 'ö', "divide": '÷',
	"oslash": 'ø', "ugrave": 'ù', "uacute": 'ú',
	"ucircumflex": 'û', "udieresis": 'ü', "yacute": 'ý',
	"thorn": 'þ', "ydieresis": 'ÿ',

	"Amacron": 'Ā', "amacron": 'ā', "Abreve": 'Ă',
	"abreve": 'ă', "Aogonek": 'Ą', "aogonek": 'ą',
	"Cacute": 'Ć', "cacute": 'ć', "Ccaron": 'Č',
	"ccaron": 'č', "Dcaron": 'Ď', "dcaron": 'ď',
	"Dcroat": 'Đ', "dcroat": 'đ', "Emacron": 'Ē',
	"emacron": 'ē', "Edotaccent": 'Ė', "edotaccent": 'ė',
	"Eogonek": 'Ę', "eogonek": 'ę', "Ecaron": 'Ě',
	"ecaron": 'ě', "Gbreve": 'Ğ', "gbreve": 'ğ',
	"Gcommaaccent": 'Ģ', "gcommaaccent": 'ģ',
	"Idotaccent": 'İ', "dotlessi": 'ı',
	"Lacute": 'Ĺ', "lacute": 'ĺ', "Lcaron": 'Ľ',
	"lcaron": 'ľ', "Lslash": 'Ł', "lslash": 'ł',
	"Nacute": 'Ń', "nacute": 'ń', "Ncaron": 'Ň',
	"ncaron": 'ň', "Omacron": 'Ō', "omacron": 'ō',
	"Ohungarumlaut": 'Ő', "ohungarumlaut": 'ő',
	"OE": 'Œ', "oe": 'œ', "Racute": 'Ŕ', "racute": 'ŕ',
	"Rcaron": 'Ř', "rcaron": 'ř', "Sacute": 'Ś',
	"sacute": 'ś', "Scedilla": 'Ş', "scedilla": 'ş',
	"Scaron": 'Š', "scaron": 'š', "Tcaron": 'Ť',
	"tcaron": 'ť', "Umacron": 'Ū', "umacron": 'ū',
	"Uring": 'Ů', "uring": 'ů', "Uhungarumlaut": 'Ű',
	"uhungarumlaut": 'ű', "Wcircumflex": 'Ŵ',
	"wcircumflex": 'ŵ', "Ycircumflex": 'Ŷ',
	"ycircumflex": 'ŷ', "Ydieresis": 'Ÿ', "Zacute": 'Ź',
	"zacute": 'ź', "Zdotaccent": 'Ż', "zdotaccent": 'ż',
	"Zcaron": 'Ž', "zcaron": 'ž', "florin": 'ƒ',

	"circumflex": 'ˆ', "caron": 'ˇ', "breve": '˘',
	"dotaccent": '˙', "ring": '˚', "ogonek": '˛',
	"tilde": '˜', "hungarumlaut": '˝',

	"Alpha": 'Α', "Beta": 'Β', "Gamma": 'Γ',
	"Delta": 'Δ', "Epsilon": 'Ε', "Zeta": 'Ζ',
	"Eta": 'Η', "Theta": 'Θ', "Iota": 'Ι',
	"Kappa": 'Κ', "Lambda": 'Λ', "Mu": 'Μ',
	"Nu": 'Ν', "Xi": 'Ξ', "Omicron": 'Ο', "Pi": 'Π',
	"Rho": 'Ρ', "Sigma": 'Σ', "Tau": 'Τ',
	"Upsilon": 'Υ', "Phi": 'Φ', "Chi": 'Χ',
	"Psi": 'Ψ', "Omega": 'Ω',
	"alpha": 'α', "beta": 'β', "gamma": 'γ',
	"delta": 'δ', "epsilon": 'ε', "zeta": 'ζ',
	"eta": 'η', "theta": 'θ', "iota": 'ι',
	"kappa": 'κ', "lambda": 'λ', "nu": 'ν', "xi": 'ξ',
	"omicron": 'ο', "pi": 'π', "rho": 'ρ',
	"sigma": 'σ', "sigma1": 'ς', "tau": 'τ',
	"upsilon": 'υ', "phi": 'φ', "chi": 'χ',
	"psi": 'ψ', "omega": 'ω',

	"endash": '–', "emdash": '—',
	"quoteleft": '‘', "quoteright": '’', "quotesinglbase": '‚',
	"quotedblleft": '“', "quotedblright": '”',
	"quotedblbase": '„', "dagger": '†', "daggerdbl": '‡',
	"bullet": '•', "ellipsis": '…', "perthousand": '‰',
	"guilsinglleft": '‹', "guilsinglright": '›',
	"fraction": '⁄', "Euro": '€', "trademark": '™',
	"minus": '−', "lozenge": '◊',
	"partialdiff": '∂', "increment": '∆', "product": '∏',
	"summation": '∑', "radical": '√', "infinity": '∞',
	"integral": '∫', "approxequal": '≈', "notequal": '≠',
	"lessequal": '≤', "greaterequal": '≥',
	"ff": 'ﬀ', "fi": 'ﬁ', "fl": 'ﬂ',
	"ffi": 'ﬃ', "ffl": 'ﬄ',
	"apple": '', "nbspace": ' ',
	".notdef": 0,
}
