// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
)

// FloatT is a struct with a single float64 field, F64, as JSON {"f64": value}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, Int, as JSON {"int": value}
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single string field, Str, as JSON {"str": value}
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single bool field, Bool, as JSON {"bool": value}
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct holding a single value of one of a few basic
// types, tagged by T
type HumanPayload struct {
	T      types.BasicKind
	Float  float64
	Int    int
	String string
	Bool   bool
}

// wrapped returns the single-field JSON form of the payload
func (hp HumanPayload) wrapped() (interface{}, error) {
	switch hp.T {
	case types.Float64:
		return FloatT{hp.Float}, nil
	case types.Int:
		return IntT{hp.Int}, nil
	case types.String:
		return StrT{hp.String}, nil
	case types.Bool:
		return BoolT{hp.Bool}, nil
	default:
		return nil, fmt.Errorf("server: payload kind %d not supported", hp.T)
	}
}

// EncodeAndRespond writes the payload to w as JSON
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	obj, err := hp.wrapped()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	EncodeJSON(w, obj)
}

// EncodeJSON writes obj to w as JSON with status 200
func EncodeJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Println("server: encoding response:", err)
	}
}
