package correlate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/demotimeline/internal/correlate"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
