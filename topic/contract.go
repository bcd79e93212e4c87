// Package topic derives and memoizes the fixed family of MQTT topics used
// by the device shadow protocol for a given device name.
package topic

import (
	"fmt"
	"strings"
)

// prefix is the namespace every shadow topic lives under.
const prefix = "baidu/iot/shadow"

// Verb identifies one of the three request/reply actions. Delta is not a
// verb in this sense — it has no outbound request topic.
type Verb string

const (
	Update Verb = "update"
	Get    Verb = "get"
	Delete Verb = "delete"
)

// Contract holds the eleven shadow topics for one device, computed once at
// construction time. All fields are plain strings; composing them per
// message would mean an allocation on every publish and every inbound
// dispatch, so this precomputes them the way the source's TopicContract did.
type Contract struct {
	Update         string
	UpdateAccepted string
	UpdateRejected string
	Get            string
	GetAccepted    string
	GetRejected    string
	Delete         string
	DeleteAccepted string
	DeleteRejected string
	Delta          string
	DeltaRejected  string
}

// New builds the topic contract for deviceName. The returned Contract is
// immutable; callers must not mutate its fields.
func New(deviceName string) *Contract {
	base := fmt.Sprintf("%s/%s", prefix, deviceName)
	return &Contract{
		Update:         base + "/update",
		UpdateAccepted: base + "/update/accepted",
		UpdateRejected: base + "/update/rejected",
		Get:            base + "/get",
		GetAccepted:    base + "/get/accepted",
		GetRejected:    base + "/get/rejected",
		Delete:         base + "/delete",
		DeleteAccepted: base + "/delete/accepted",
		DeleteRejected: base + "/delete/rejected",
		Delta:          base + "/delta",
		DeltaRejected:  base + "/delta/rejected",
	}
}

// RequestTopic returns the outbound request topic for the given verb.
func (c *Contract) RequestTopic(v Verb) (string, bool) {
	switch v {
	case Update:
		return c.Update, true
	case Get:
		return c.Get, true
	case Delete:
		return c.Delete, true
	default:
		return "", false
	}
}

// Subscriptions returns the seven inbound topics a connected client
// subscribes to: all six accepted/rejected topics plus delta. Unlike the
// source this implementation is derived from, every action gets its own
// slot — the source left delete/accepted and delete/rejected shadowed by a
// duplicated get/accepted and get/rejected entry.
func (c *Contract) Subscriptions() []string {
	return []string{
		c.UpdateAccepted,
		c.UpdateRejected,
		c.GetAccepted,
		c.GetRejected,
		c.DeleteAccepted,
		c.DeleteRejected,
		c.Delta,
	}
}

// Classification describes what an inbound topic means to the dispatcher.
type Classification struct {
	Verb     Verb
	Accepted bool
	IsDelta  bool
}

// Classify maps an inbound topic to its meaning, or ok=false if nothing
// matches. Matching is a case-insensitive longest-prefix match against the
// eleven known topics: "delta" and "delta/rejected" share a prefix, so the
// longer (more specific) match wins.
func (c *Contract) Classify(inbound string) (Classification, bool) {
	candidates := []struct {
		topic string
		class Classification
	}{
		{c.UpdateAccepted, Classification{Verb: Update, Accepted: true}},
		{c.UpdateRejected, Classification{Verb: Update, Accepted: false}},
		{c.GetAccepted, Classification{Verb: Get, Accepted: true}},
		{c.GetRejected, Classification{Verb: Get, Accepted: false}},
		{c.DeleteAccepted, Classification{Verb: Delete, Accepted: true}},
		{c.DeleteRejected, Classification{Verb: Delete, Accepted: false}},
		{c.DeltaRejected, Classification{IsDelta: true}},
		{c.Delta, Classification{IsDelta: true}},
	}

	best := -1
	var bestClass Classification
	for _, cand := range candidates {
		if len(cand.topic) <= best {
			continue
		}
		if len(inbound) < len(cand.topic) {
			continue
		}
		if strings.EqualFold(inbound[:len(cand.topic)], cand.topic) {
			best = len(cand.topic)
			bestClass = cand.class
		}
	}

	if best < 0 {
		return Classification{}, false
	}
	return bestClass, true
}
