package csv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    CsvDelimiter
	}{
		{"comma", "upc,brand\n1,Acme\n2,Other\n", DelimiterComma},
		{"semicolon", "upc;brand;size\n1;Acme;16 OZ\n", DelimiterSemicolon},
		{"tab", "upc\tbrand\n1\tAcme\n", DelimiterTab},
		{"pipe", "upc|brand\n1|Acme\n", DelimiterPipe},
		{"quoted commas", "upc;description\n1;\"PASTA, DRY\"\n2;\"SAUCE, RED, HOT\"\n", DelimiterSemicolon},
		{"blank lines skipped", "\n\nupc;brand\n\n1;Acme\n", DelimiterSemicolon},
		{"single column", "upc\n1\n2\n", DelimiterComma},
		{"empty", "", DelimiterComma},
		{"consistent beats frequent", "a;b,c,d\n1;2\n3;4,5\n", DelimiterSemicolon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.content))
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]CsvDelimiter{
		"auto": DelimiterAuto, "": DelimiterAuto, "comma": DelimiterComma,
		";": DelimiterSemicolon, `\t`: DelimiterTab, "pipe": DelimiterPipe,
	} {
		got, ok := ParseDelimiter(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDelimiter("colon")
	assert.False(t, ok)
}
