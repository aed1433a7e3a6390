package server

import (
	"bytes"
	"fmt"
	"strconv"

	"bookshare/internal/validation"
)

// formBool decodes JSON booleans as well as the checkbox strings accepted by
// validation.ParseFormBool, so handlers always see a real bool.
type formBool bool

func (b *formBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	raw := string(data)
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	v, err := validation.ParseFormBool(raw)
	if err != nil {
		return err
	}
	*b = formBool(v)
	return nil
}

func (b *formBool) ptr() *bool {
	if b == nil {
		return nil
	}
	v := bool(*b)
	return &v
}

// optionalID tells "absent" apart from "cleared": Set is true whenever the
// key was present, and Value is nil for null, "" or 0.
type optionalID struct {
	Set   bool
	Value *uint
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	data = bytes.TrimSpace(data)
	raw := string(data)
	if raw == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	if n == 0 {
		return nil
	}
	id := uint(n)
	o.Value = &id
	return nil
}
