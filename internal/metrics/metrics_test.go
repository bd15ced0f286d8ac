package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

func TestRecordResolution(t *testing.T) {
	require.NoError(t, view.Register(Views...))
	defer view.Unregister(Views...)

	RecordResolution(context.Background(), "ninja", "latest", "ok")
	RecordResolution(context.Background(), "ninja", "latest", "ok")
	RecordResolution(context.Background(), "ninja", "get_url", "unsupported_platform")

	rows, err := view.RetrieveData("resolutions")
	require.NoError(t, err)
	counts := make(map[string]int64)
	for _, row := range rows {
		key := ""
		for _, tg := range row.Tags {
			key += tg.Key.Name() + "=" + tg.Value + ";"
		}
		counts[key] = row.Data.(*view.CountData).Value
	}
	require.Equal(t, int64(2), counts["operation=latest;result=ok;source=ninja;"])
	require.Equal(t, int64(1), counts["operation=get_url;result=unsupported_platform;source=ninja;"])
}
