package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"icu-bed-management/internal/models"
)

// ParsePayload validates and normalizes a webhook response body. The body may be
// the object itself or an array whose first element is the object, optionally
// nested under "output". Dates without a time are read in loc.
func ParsePayload(body []byte, loc *time.Location) (*Result, error) {
	obj, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	res := &Result{}

	if res.FormattedRecord, err = optionalString(obj, "formatted_record"); err != nil {
		return nil, err
	}
	if res.HistoryEntry, err = optionalString(obj, "history_entry"); err != nil {
		return nil, err
	}
	if res.Initials, err = optionalString(obj, "initials"); err != nil {
		return nil, err
	}

	status, err := optionalString(obj, "status")
	if err != nil {
		return nil, err
	}
	if status != nil {
		s := models.BedStatus(strings.TrimSpace(*status))
		if !s.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedPayload, *status)
		}
		res.Status = &s
	}

	if res.VentilationStart, err = optionalDate(obj, "vmi_start_date", loc); err != nil {
		return nil, err
	}

	if err := parseExtubations(obj, res); err != nil {
		return nil, err
	}

	if raw, ok := present(obj, "ims"); ok {
		ims, err := asObject(raw, "ims")
		if err != nil {
			return nil, err
		}
		if res.MobilityTarget, err = optionalCount(ims, "target"); err != nil {
			return nil, err
		}
		if res.MobilityAchieved, err = optionalCount(ims, "achieved"); err != nil {
			return nil, err
		}
	}

	if raw, ok := present(obj, "metadata"); ok {
		meta, err := asObject(raw, "metadata")
		if err != nil {
			return nil, err
		}
		if err := mergeMetadata(meta, res, loc); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func unwrap(body []byte) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	if body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrMalformedPayload)
		}
		first, err := asObject(items[0], "[0]")
		if err != nil {
			return nil, err
		}
		if output, ok := present(first, "output"); ok {
			return asObject(output, "[0].output")
		}
		return first, nil
	}

	return asObject(body, "payload")
}

// mergeMetadata fills fields the top level did not carry from the metadata envelope
func mergeMetadata(meta map[string]json.RawMessage, res *Result, loc *time.Location) error {
	target, err := optionalCount(meta, "ims_target")
	if err != nil {
		return err
	}
	achieved, err := optionalCount(meta, "ims_achieved")
	if err != nil {
		return err
	}
	if res.MobilityTarget == nil {
		res.MobilityTarget = target
	}
	if res.MobilityAchieved == nil {
		res.MobilityAchieved = achieved
	}

	start, err := optionalDate(meta, "vmi_start_date", loc)
	if err != nil {
		return err
	}
	if res.VentilationStart == nil {
		res.VentilationStart = start
	}

	raw, ok := present(meta, "extubations")
	if !ok {
		return nil
	}
	if isObject(raw) {
		counts, err := parseCounters(raw, "metadata.extubations")
		if err != nil {
			return err
		}
		if res.ExtubationCounts == nil {
			res.ExtubationCounts = counts
		}
		return nil
	}
	total, err := count(raw, "metadata.extubations")
	if err != nil {
		return err
	}
	res.ReportedTotal = &total
	return nil
}

func parseExtubations(obj map[string]json.RawMessage, res *Result) error {
	outcome := "success"
	if o, err := optionalString(obj, "extubation_outcome"); err != nil {
		return err
	} else if o != nil {
		outcome = strings.ToLower(strings.TrimSpace(*o))
	}

	raw, ok := present(obj, "extubations_increment")
	if !ok {
		return nil
	}

	if isObject(raw) {
		inc, err := parseCounters(raw, "extubations_increment")
		if err != nil {
			return err
		}
		if !inc.IsZero() {
			res.ExtubationIncrement = inc
		}
		return nil
	}

	n, err := count(raw, "extubations_increment")
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	inc := models.ExtubationCounters{}
	switch outcome {
	case "success":
		inc.Success = n
	case "fail", "failure":
		inc.Fail = n
	case "accidental":
		inc.Accidental = n
	case "self", "self_extubation":
		inc.Self = n
	default:
		return fmt.Errorf("%w: unknown extubation_outcome %q", ErrMalformedPayload, outcome)
	}
	res.ExtubationIncrement = &inc
	return nil
}

func parseCounters(raw json.RawMessage, field string) (*models.ExtubationCounters, error) {
	obj, err := asObject(raw, field)
	if err != nil {
		return nil, err
	}
	c := &models.ExtubationCounters{}
	for key, dst := range map[string]*int{
		"success":    &c.Success,
		"fail":       &c.Fail,
		"accidental": &c.Accidental,
		"self":       &c.Self,
	} {
		n, err := optionalCount(obj, key)
		if err != nil {
			return nil, err
		}
		if n != nil {
			*dst = *n
		}
	}
	return c, nil
}

// present returns the raw value of key unless it is missing or JSON null
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil, false
	}
	return raw, true
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func asObject(raw json.RawMessage, field string) (map[string]json.RawMessage, error) {
	if !isObject(raw) {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedPayload, field)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, field, err)
	}
	return obj, nil
}

func optionalString(obj map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := present(obj, key)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s must be a string", ErrMalformedPayload, key)
	}
	return &s, nil
}

func optionalCount(obj map[string]json.RawMessage, key string) (*int, error) {
	raw, ok := present(obj, key)
	if !ok {
		return nil, nil
	}
	n, err := count(raw, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// count decodes a non-negative whole number
func count(raw json.RawMessage, field string) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrMalformedPayload, field)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %v", ErrMalformedPayload, field, f)
	}
	return int(f), nil
}

func optionalDate(obj map[string]json.RawMessage, key string, loc *time.Location) (*time.Time, error) {
	s, err := optionalString(obj, key)
	if err != nil || s == nil {
		return nil, err
	}
	value := strings.TrimSpace(*s)
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s is not a date: %q", ErrMalformedPayload, key, value)
}
