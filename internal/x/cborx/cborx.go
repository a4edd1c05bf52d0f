// Package cborx holds the CBOR encoding shared by the data-stores and the gRPC
// codec.
package cborx

import "github.com/fxamacker/cbor/v2"

// enc encodes times as RFC 3339 strings, preserving sub-second precision and
// the time zone offset.
var enc = func() cbor.EncMode {
	m, err := cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Marshal returns the CBOR encoding of v.
func Marshal(v any) ([]byte, error) {
	return enc.Marshal(v)
}

// Unmarshal decodes the CBOR encoded data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
