package transit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etapaper/etapaper/internal/transit"
)

func TestParseCompany(t *testing.T) {
	for _, c := range transit.Companies() {
		parsed, err := transit.ParseCompany(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := transit.ParseCompany("tram")
	assert.Error(t, err)
}

func TestCompanyText(t *testing.T) {
	assert.Equal(t, "九巴", transit.KMB.Text(transit.LocaleTC))
	assert.Equal(t, "KMB", transit.KMB.Text(transit.LocaleEN))
	assert.Equal(t, "輕鐵", transit.MTRLightRail.Text(transit.LocaleTC))
}

func TestCompanyLogo(t *testing.T) {
	assert.Equal(t, "kmb.bmp", transit.KMB.Logo())
	assert.Equal(t, "mtr_train.bmp", transit.MTRTrain.Logo())
}

func TestDirectionInitial(t *testing.T) {
	assert.Equal(t, "O", transit.Outbound.Initial())
	assert.Equal(t, "I", transit.Inbound.Initial())
}

func TestRouteQueryValidate(t *testing.T) {
	valid := transit.RouteQuery{
		Company: transit.KMB, No: "1A", Direction: transit.Outbound,
		StopID: "ABC123", ServiceType: "1", Locale: transit.LocaleTC,
	}
	assert.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*transit.RouteQuery){
		"bad company":        func(q *transit.RouteQuery) { q.Company = "tram" },
		"bad direction":      func(q *transit.RouteQuery) { q.Direction = "up" },
		"bad locale":         func(q *transit.RouteQuery) { q.Locale = "fr" },
		"empty route":        func(q *transit.RouteQuery) { q.No = "" },
		"empty stop":         func(q *transit.RouteQuery) { q.StopID = "" },
		"empty service type": func(q *transit.RouteQuery) { q.ServiceType = "" },
	} {
		t.Run(name, func(t *testing.T) {
			q := valid
			mutate(&q)
			assert.Error(t, q.Validate())
		})
	}
}

func TestPayloadMessages(t *testing.T) {
	for _, tc := range []struct {
		kind   transit.PayloadKind
		locale transit.Locale
		want   string
	}{
		{transit.PayloadAPIError, transit.LocaleEN, "API Error"},
		{transit.PayloadAPIError, transit.LocaleTC, "API 錯誤"},
		{transit.PayloadNoData, transit.LocaleEN, "No Data"},
		{transit.PayloadNoData, transit.LocaleTC, "沒有預報"},
		{transit.PayloadEndOfService, transit.LocaleEN, "Not in Service"},
		{transit.PayloadEndOfService, transit.LocaleTC, "服務時間已過"},
		{transit.PayloadSpecialService, transit.LocaleTC, "特別車務安排"},
		{transit.PayloadStationClosed, transit.LocaleTC, "車站暫停服務"},
	} {
		assert.Equal(t, tc.want, transit.Message(tc.kind, tc.locale))
	}
}
