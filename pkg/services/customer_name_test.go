package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCustomerName(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantName    string
		wantAddress string
	}{
		{
			name:        "parenthesized district address",
			raw:         "미라클신경과의원(강서구 화곡동)",
			wantName:    "미라클신경과의원",
			wantAddress: "강서구 화곡동",
		},
		{
			name:        "full-width parentheses",
			raw:         "성모약국（서초구 반포동）",
			wantName:    "성모약국",
			wantAddress: "서초구 반포동",
		},
		{
			name:        "parenthesized branch name stays in the name",
			raw:         "한빛의원(본점)",
			wantName:    "한빛의원(본점)",
			wantAddress: "",
		},
		{
			name:        "bare city district address",
			raw:         "연세내과 서울시 강남구 역삼동",
			wantName:    "연세내과",
			wantAddress: "서울시 강남구 역삼동",
		},
		{
			name:        "city district without dong",
			raw:         "푸른약국 부산시 해운대구",
			wantName:    "푸른약국",
			wantAddress: "부산시 해운대구",
		},
		{
			name:        "plain name passes through",
			raw:         "중앙병원",
			wantName:    "중앙병원",
			wantAddress: "",
		},
		{
			name:        "whole string is an address keeps it as the name",
			raw:         "서울시 강남구 역삼동",
			wantName:    "서울시 강남구 역삼동",
			wantAddress: "",
		},
		{
			name:        "surrounding whitespace trimmed",
			raw:         "  온누리약국  ",
			wantName:    "온누리약국",
			wantAddress: "",
		},
		{
			name:        "empty input",
			raw:         "",
			wantName:    "",
			wantAddress: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, address := SplitCustomerName(tt.raw)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAddress, address)
		})
	}
}
