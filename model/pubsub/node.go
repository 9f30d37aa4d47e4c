/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pubsubmodel

import (
	"bytes"
	"encoding/gob"
	"strings"
)

// Node represents a pubsub node entity. Nodes form a hierarchy rooted at a
// collection node with an empty name; leaf nodes hold published items,
// collection nodes hold child nodes.
type Node struct {
	Host       string
	Name       string
	Parent     string
	Collection bool
	Options    Options
}

// IsRoot tells whether the node is the unnamed root collection node.
func (n *Node) IsRoot() bool {
	return n.Collection && len(n.Name) == 0
}

// IsChildOf tells whether the node hangs directly from a given collection.
func (n *Node) IsChildOf(parent string) bool {
	return n.Parent == parent
}

// LocalName returns the last segment of the node name.
func (n *Node) LocalName() string {
	if i := strings.LastIndexByte(n.Name, '/'); i >= 0 {
		return n.Name[i+1:]
	}
	return n.Name
}

// FromBytes deserializes a Node entity from its binary representation.
func (n *Node) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&n.Host); err != nil {
		return err
	}
	if err := dec.Decode(&n.Name); err != nil {
		return err
	}
	if err := dec.Decode(&n.Parent); err != nil {
		return err
	}
	if err := dec.Decode(&n.Collection); err != nil {
		return err
	}
	var optMap map[string]string
	if err := dec.Decode(&optMap); err != nil {
		return err
	}
	opt, err := NewOptionsFromMap(optMap)
	if err != nil {
		return err
	}
	n.Options = *opt
	return nil
}

// ToBytes converts a Node entity to its binary representation.
func (n *Node) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&n.Host); err != nil {
		return err
	}
	if err := enc.Encode(&n.Name); err != nil {
		return err
	}
	if err := enc.Encode(&n.Parent); err != nil {
		return err
	}
	if err := enc.Encode(&n.Collection); err != nil {
		return err
	}
	optMap, err := n.Options.Map()
	if err != nil {
		return err
	}
	return enc.Encode(&optMap)
}
