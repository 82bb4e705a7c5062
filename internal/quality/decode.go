package quality

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// timestampLayouts are tried in order when decoding the timestamp column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

var (
	decimalType = reflect.TypeOf(apd.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// decodeRecord decodes a normalized source row into a RawRecord.
func decodeRecord(row map[string]string) (core.RawRecord, error) {
	var rec core.RawRecord

	input := make(map[string]any, len(row))
	for k, v := range row {
		if v != "" {
			input[k] = v
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToDecimalHook,
			stringToTimeHook,
			floatStringToIntHook,
		),
	})
	if err != nil {
		return rec, fmt.Errorf("failed to create record decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return rec, err
	}
	return rec, nil
}

func stringToDecimalHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != decimalType {
		return data, nil
	}
	d, _, err := apd.NewFromString(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q", data)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("invalid decimal %q", data)
	}
	return *d, nil
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s := data.(string)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

// floatStringToIntHook accepts integral values written as floats ("1980.0").
func floatStringToIntHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int64:
	default:
		return data, nil
	}
	s := data.(string)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return int64(f), nil
}
