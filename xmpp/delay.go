/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"time"
)

const delayNamespace = "urn:xmpp:delay"

// Delay attaches element's Delayed Delivery information.
func (e *Element) Delay(from string, text string) {
	e.DelayAt(time.Now(), from, text)
}

// DelayAt attaches element's Delayed Delivery information for a given timestamp.
func (e *Element) DelayAt(t time.Time, from string, text string) {
	d := NewElementNamespace("delay", delayNamespace)
	if len(from) > 0 {
		d.SetAttribute("from", from)
	}
	d.SetAttribute("stamp", t.UTC().Format("2006-01-02T15:04:05Z"))
	if len(text) > 0 {
		d.SetText(text)
	}
	e.AppendElement(d)
}

// DelayElement returns element's Delayed Delivery sub element.
func (e *Element) DelayElement() XElement {
	return e.elements.ChildNamespace("delay", delayNamespace)
}
