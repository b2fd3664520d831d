package metar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

func TestDecodeTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"regular", "160456Z", time.Date(2024, time.June, 16, 4, 56, 0, 0, time.UTC), false},
		{"first of month at midnight", "010000Z", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), false},
		{"last day of june", "302359Z", time.Date(2024, time.June, 30, 23, 59, 0, 0, time.UTC), false},
		{"day 31 in a 30 day month", "311200Z", time.Time{}, true},
		{"day 32", "321200Z", time.Time{}, true},
		{"day zero", "001200Z", time.Time{}, true},
		{"hour 24", "162400Z", time.Time{}, true},
		{"minute 60", "161260Z", time.Time{}, true},
		{"missing zulu", "1604560", time.Time{}, true},
		{"too short", "1604Z", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTime(tt.raw, testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeTime_UsesCallerMonth(t *testing.T) {
	feb := time.Date(2023, time.February, 10, 0, 0, 0, 0, time.UTC)

	_, err := decodeTime("290000Z", feb)
	require.Error(t, err)

	leap := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	got, err := decodeTime("290000Z", leap)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeStationType(t *testing.T) {
	tests := []struct {
		raw  string
		want StationType
	}{
		{"AUTO", StationTypeAutomated},
		{"COR", StationTypeCorrected},
		{"", StationTypeUnspecified},
		{"RTD", StationTypeUnspecified},
		{"CCA", StationTypeUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeStationType(tt.raw))
		})
	}
}

func TestDecodeWind(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Wind
		wantErr bool
	}{
		{"gusting", "27024G33KT", Wind{Direction: 270, Speed: 24, Gust: 33, Gusting: true}, false},
		{"steady", "10023KT", Wind{Direction: 100, Speed: 23}, false},
		{"variable", "VRB03KT", Wind{Variable: true, VariableSpeed: 3}, false},
		{"calm", "00000KT", Wind{}, false},
		{"north at 360", "36010KT", Wind{Direction: 360, Speed: 10}, false},
		{"direction out of range", "37010KT", Wind{}, true},
		{"missing unit", "27024", Wind{}, true},
		{"gust marker without digits", "27024GKT", Wind{}, true},
		{"variable with gust", "VRB03G10KT", Wind{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeWind(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWind_Calm(t *testing.T) {
	assert.True(t, Wind{}.Calm())
	assert.False(t, Wind{Variable: true, VariableSpeed: 3}.Calm())
	assert.False(t, Wind{Direction: 270, Speed: 5}.Calm())
}

func TestDecodeWindVariation(t *testing.T) {
	got, err := decodeWindVariation("240V300")
	require.NoError(t, err)
	assert.Equal(t, WindVariation{From: 240, To: 300}, got)

	_, err = decodeWindVariation("240V400")
	require.Error(t, err)

	_, err = decodeWindVariation("240-300")
	require.Error(t, err)
}

func TestDecodeVisibility(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"whole miles", "10SM", "10", false},
		{"fraction", "1/2SM", "1/2", false},
		{"mixed", "1 1/2SM", "1 1/2", false},
		{"less than", "M1/4SM", "< 1/4", false},
		{"greater than", "P6SM", "> 6", false},
		{"meters", "9999", "9999", false},
		{"meters low", "0800", "0800", false},
		{"decimal", "1.5SM", "1.5", false},
		{"three digit miles", "100SM", "100", false},
		{"unit only", "SM", "", true},
		{"meters too short", "999", "", true},
		{"misplaced fraction", "12/4SM", "", true},
		{"letters", "ABSM", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeVisibility(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeTemperature(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"M06", -6, false},
		{"06", 6, false},
		{"00", 0, false},
		{"M00", 0, false},
		{"40", 40, false},
		{"M1", 0, true},
		{"6", 0, true},
		{"MM6", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := decodeTemperature(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAltimeter(t *testing.T) {
	got, err := decodeAltimeter("A2999")
	require.NoError(t, err)
	assert.Equal(t, 2999, got)

	_, err = decodeAltimeter("Q1013")
	require.Error(t, err)

	_, err = decodeAltimeter("A299")
	require.Error(t, err)
}

func TestDecodeRemarks(t *testing.T) {
	assert.Equal(t, []string{}, decodeRemarks(""))
	assert.Equal(t, []string{"AO2"}, decodeRemarks("RMK AO2"))
	assert.Equal(t, []string{"AO2", "PK", "WND", "27035/0442"}, decodeRemarks("RMK AO2  PK WND 27035/0442 "))
	assert.Equal(t, []string{}, decodeRemarks("RMK"))
}

func TestFixedInt(t *testing.T) {
	v, err := fixedInt("27024G33", 6, 2)
	require.NoError(t, err)
	assert.Equal(t, 33, v)

	_, err = fixedInt("270", 2, 2)
	require.Error(t, err)

	_, err = fixedInt("2A0", 0, 3)
	require.Error(t, err)
}

func TestDecode_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
		raw   string
	}{
		{"calendar day out of range", "KSFO 320456Z 27024G33KT 10SM FEW009 15/10", FieldTime, "320456Z"},
		{"hour out of range", "KSFO 162556Z 27024G33KT 10SM FEW009 15/10", FieldTime, "162556Z"},
		{"wind direction out of range", "KSFO 160456Z 99024KT 10SM FEW009 15/10", FieldWind, "99024KT"},
		{"wind variation out of range", "KSFO 160456Z 27024KT 500V600 10SM FEW009 15/10", FieldWindVariation, "500V600"},
		{"one-digit gust", "KSFO 160456Z 27024G3KT 10SM FEW009 15/10 A2999", FieldWind, "27024G3KT"},
		{"three-digit gust", "KSFO 160456Z 27025G105KT 10SM FEW009 15/10 A2999", FieldWind, "27025G105KT"},
		{"wind repeated", "KSFO 160456Z 27024KT 27010KT 10SM FEW009 15/10", FieldWind, "27010KT"},
		{"variation after visibility", "KSFO 160456Z 27024KT 10SM 240V300 FEW009 15/10", FieldWindVariation, "240V300"},
		{"visibility with decimal comma", "KSFO 160456Z 27024KT 1,5SM FEW009 15/10", FieldWeather, "1,5SM"},
		{"three-digit meter code", "KSFO 160456Z 27024KT 800 FEW009 15/10", FieldWeather, "800"},
		{"four-digit statute miles", "KSFO 160456Z 27024KT 0100SM FEW009 15/10 A2999", FieldVisibility, "0100SM"},
		{"visibility after weather", "KSFO 160456Z 27024KT BR 10SM FEW009 15/10", FieldVisibility, "10SM"},
		{"bad station type", "KSFO 160456Z AUTOX 27024KT 10SM FEW009 15/10", FieldWeather, "AUTOX"},
		{"unknown weather code", "KSFO 160456Z 27024KT 10SM XX FEW009 15/10", FieldWeather, "XX"},
		{"stray token after clouds", "KSFO 160456Z 27024KT 10SM FEW009 QQQ 15/10", FieldWeather, "QQQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.line, testNow)
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.raw, fe.Raw)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, KindField, ErrorKind(err))
		})
	}
}

func TestCheckWeatherRun_AcceptsWeatherAndClouds(t *testing.T) {
	for _, blob := range []string{
		"",
		"-RA BR BKN008 OVC015",
		"+TSRA VCSH FEW020CB",
		"TS FZFG VV001",
		"-SHRASN DZ SCT030TCU",
		"NSW CAVOK",
		"BLSN BCFG MIFG PRFG DRSA",
		"HZ FEW095 VCSH",
	} {
		assert.NoError(t, checkWeatherRun(blob), blob)
	}
}

func TestDecode_Ungrammatical(t *testing.T) {
	_, err := Decode("not a report", testNow)
	require.ErrorIs(t, err, ErrUngrammatical)
}

func TestDecode_Deterministic(t *testing.T) {
	const line = "KMLP 160522Z AUTO VRB03KT 2SM BR BKN004 BKN013 OVC019 03/03 A2996 RMK AO2 T00330028 $"

	first, err := Decode(line, testNow)
	require.NoError(t, err)
	second, err := Decode(line, testNow)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindUngrammatical, ErrorKind(ErrUngrammatical))
	assert.Equal(t, KindField, ErrorKind(fieldError(FieldWind, "x", errors.New("bad"))))
	assert.Equal(t, KindOther, ErrorKind(errors.New("boom")))
}
