package extract

import (
	"bytes"
	"encoding/csv"
	"path"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

// Header is the fixed column schema of every exported file.
var Header = []string{"timestamp", "machine_id", "temperature", "vibration"}

// DefaultPrefix is where exported files land when no prefix is configured.
const DefaultPrefix = "iot-data"

// ObjectKey names the export for w. Reruns for the same window produce the
// same key and overwrite the previous file.
func ObjectKey(prefix string, w domain.TimeWindow) string {
	return path.Join(prefix, "batch_"+w.Slug()+".csv")
}

// EncodeCSV renders records in the order given. Every record must be
// complete; decimals are written with the digits they were received with.
func EncodeCSV(records []domain.BufferRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	row := make([]string, len(Header))
	for i := range records {
		m := records[i].Message
		row[0] = records[i].Timestamp
		row[1] = m.MachineID
		row[2] = domain.FormatDecimal(m.Temperature.Decimal)
		row[3] = domain.FormatDecimal(m.Vibration.Decimal)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
