package opcua

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/shopspring/decimal"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

type field int

const (
	fieldTemperature field = iota + 1
	fieldVibration
)

func (f field) String() string {
	if f == fieldTemperature {
		return "temperature"
	}
	return "vibration"
}

type nodeRef struct {
	machine string
	field   field
	nodeID  string
}

type partial struct {
	temperature *decimal.Decimal
	vibration   *decimal.Decimal
	at          time.Time
}

// assembler pairs the temperature and vibration values of one machine into a
// reading. A reading is emitted once both values have arrived since the last
// emission; the newer of the two sample times becomes its timestamp.
type assembler struct {
	pending map[string]*partial
}

func newAssembler() *assembler {
	return &assembler{pending: make(map[string]*partial)}
}

func (a *assembler) add(ref nodeRef, v decimal.Decimal, at time.Time) (domain.Reading, bool) {
	p := a.pending[ref.machine]
	if p == nil {
		p = &partial{}
		a.pending[ref.machine] = p
	}
	switch ref.field {
	case fieldTemperature:
		p.temperature = &v
	case fieldVibration:
		p.vibration = &v
	}
	if at.After(p.at) {
		p.at = at
	}
	if p.temperature == nil || p.vibration == nil {
		return domain.Reading{}, false
	}

	r := domain.Reading{
		MachineID:   ref.machine,
		Temperature: *p.temperature,
		Vibration:   *p.vibration,
		Timestamp:   p.at.UTC().Format(time.RFC3339Nano),
	}
	delete(a.pending, ref.machine)
	return r, true
}

// sampleTime prefers the device's own timestamp.
func sampleTime(dv *ua.DataValue, now time.Time) time.Time {
	if !dv.SourceTimestamp.IsZero() {
		return dv.SourceTimestamp
	}
	if !dv.ServerTimestamp.IsZero() {
		return dv.ServerTimestamp
	}
	return now
}

func variantToDecimal(v *ua.Variant) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Decimal{}, fmt.Errorf("empty variant")
	}

	switch val := v.Value().(type) {
	case float32:
		return decimal.NewFromFloat32(val), nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case int8:
		return decimal.NewFromInt(int64(val)), nil
	case uint8:
		return decimal.NewFromInt(int64(val)), nil
	case int16:
		return decimal.NewFromInt(int64(val)), nil
	case uint16:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt(int64(val)), nil
	case uint32:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(val), 0), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(val))
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", val)
	}
}
