package logger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const TimeLayout = "2006-01-02T15:04:05.999Z07:00"

// CustomFormatter writes "[INFO]2006-01-02T15:04:05Z msg Fields:map[k:v]".
type CustomFormatter logrus.TextFormatter

var levelTags = map[logrus.Level]string{
	logrus.PanicLevel: "PANI",
	logrus.FatalLevel: "FATA",
	logrus.ErrorLevel: "ERRO",
	logrus.WarnLevel:  "WARN",
	logrus.InfoLevel:  "INFO",
	logrus.DebugLevel: "DEBU",
	logrus.TraceLevel: "TRAC",
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	result := []byte{'['}
	result = append(result, levelTags[entry.Level]...)
	result = append(result, ']')
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if len(layout) == 0 {
			layout = TimeLayout
		}
		result = append(result, entry.Time.Format(layout)...)
		result = append(result, ' ')
	}
	result = append(result, entry.Message...)
	if len(entry.Data) > 0 {
		result = append(result, " Fields:"...)
		result = append(result, formatFields(entry.Data)...)
	}
	result = append(result, '\n')
	return result, nil
}

// keys are sorted so lines are stable across runs
func formatFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%+v", k, data[k]))
	}
	return "map[" + strings.Join(parts, " ") + "]"
}
