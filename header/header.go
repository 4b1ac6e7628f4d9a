// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package header implements user specified header modifications applied
// to forwarded requests.
package header

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
)

type Action int

const (
	Remove Action = iota
	RemoveByPrefix
	Empty
	Add
)

type Header struct {
	Name   string
	Action Action
	Value  string
}

var (
	headerNameRegex = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerLineRegex = regexp.MustCompile(`^([A-Za-z0-9-]+):\s*(.*)\r?\n?$`)
)

// ParseHeader supports the following syntax:
// - "<name>: <value>" to add a header,
// - "<name>;" to set a header to empty,
// - "-<name>" to remove a header,
// - "-<name>*" to remove a header by prefix.
func ParseHeader(val string) (Header, error) {
	var h Header

	switch {
	case strings.HasPrefix(val, "-") && strings.HasSuffix(val, "*"):
		h.Name = val[1 : len(val)-1]
		h.Action = RemoveByPrefix
	case strings.HasPrefix(val, "-"):
		h.Name = val[1:]
		h.Action = Remove
	case strings.HasSuffix(val, ";"):
		h.Name = val[:len(val)-1]
		h.Action = Empty
	default:
		m := headerLineRegex.FindStringSubmatch(val)
		if m == nil {
			return Header{}, errors.New("invalid header value")
		}
		h.Name = m[1]
		h.Value = m[2]
		h.Action = Add
	}

	if !headerNameRegex.MatchString(h.Name) {
		return Header{}, errors.New("invalid header name")
	}

	return h, nil
}

func (h Header) String() string {
	switch h.Action {
	case Remove:
		return "-" + h.Name
	case RemoveByPrefix:
		return "-" + h.Name + "*"
	case Empty:
		return h.Name + ";"
	case Add:
		return h.Name + ": " + h.Value
	}
	return ""
}

// Apply modifies hh in place.
func (h Header) Apply(hh http.Header) {
	switch h.Action {
	case Remove:
		hh.Del(h.Name)
	case RemoveByPrefix:
		removeByPrefix(hh, h.Name)
	case Empty:
		hh.Set(h.Name, "")
	case Add:
		hh.Add(h.Name, h.Value)
	}
}

func removeByPrefix(hh http.Header, prefix string) {
	for k := range hh {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) {
			hh.Del(k)
		}
	}
}

// Headers applies modifications in order, later entries can observe the
// effect of earlier ones.
type Headers []Header

func (s Headers) Apply(hh http.Header) {
	for _, h := range s {
		h.Apply(hh)
	}
}
