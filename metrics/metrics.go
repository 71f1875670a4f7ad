package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// AppMetrics tracks the relay's player population and relayed traffic volume.
type AppMetrics struct {
	metric.Meter

	TransferBytesTCP metric.Int64Counter
	TransferBytesUDP metric.Int64Counter

	players metric.Int64UpDownCounter
}

func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	bytesTCP, err := meter.Int64Counter("relay_transfer_bytes_tcp")
	if err != nil {
		return nil, err
	}

	bytesUDP, err := meter.Int64Counter("relay_transfer_bytes_udp")
	if err != nil {
		return nil, err
	}

	players, err := meter.Int64UpDownCounter("relay_players")
	if err != nil {
		return nil, err
	}

	return &AppMetrics{
		Meter:            meter,
		TransferBytesTCP: bytesTCP,
		TransferBytesUDP: bytesUDP,
		players:          players,
	}, nil
}

// PlayerConnected increments the number of connected players
func (m *AppMetrics) PlayerConnected() {
	m.players.Add(context.Background(), 1)
}

// PlayerDisconnected decrements the number of connected players
func (m *AppMetrics) PlayerDisconnected() {
	m.players.Add(context.Background(), -1)
}
