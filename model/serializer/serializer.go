/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package serializer

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/conclave-im/conclave/pool"
)

var bufPool = pool.NewBufferPool()

// Serializer represents a Gob serializable entity.
type Serializer interface {
	ToBytes(buf *bytes.Buffer) error
}

// Deserializer represents a Gob deserializable entity.
type Deserializer interface {
	FromBytes(buf *bytes.Buffer) error
}

// Serialize converts a serializable entity into its bytes representation.
func Serialize(serializer Serializer) ([]byte, error) {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	if err := serializer.ToBytes(buf); err != nil {
		return nil, err
	}
	res := make([]byte, buf.Len())
	copy(res, buf.Bytes())

	return res, nil
}

// SerializeSlice converts a slice of serializable entities into its bytes representation.
func SerializeSlice(slice interface{}) ([]byte, error) {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	v := reflect.ValueOf(slice).Elem()
	if err := writeBytes(buf, intToBytes(v.Len())); err != nil {
		return nil, err
	}
	for i := 0; i < v.Len(); i++ {
		e, ok := v.Index(i).Addr().Interface().(Serializer)
		if !ok {
			return nil, fmt.Errorf("serializer: %s elements are not serializable", v.Type().Elem().String())
		}
		if err := e.ToBytes(buf); err != nil {
			return nil, err
		}
	}
	res := make([]byte, buf.Len())
	copy(res, buf.Bytes())

	return res, nil
}

// Deserialize reads an entity from its bytes representation.
func Deserialize(b []byte, deserializer Deserializer) error {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	buf.Write(b)
	return deserializer.FromBytes(buf)
}

// DeserializeSlice reads a slice of entities from its bytes representation.
func DeserializeSlice(b []byte, slice interface{}) error {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	buf.Write(b)
	ln, err := readLen(buf)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(slice).Elem()
	t := v.Type().Elem()
	for i := 0; i < ln; i++ {
		e := reflect.New(t)
		d, ok := e.Interface().(Deserializer)
		if !ok {
			return fmt.Errorf("serializer: %s elements are not deserializable", t.String())
		}
		if err := d.FromBytes(buf); err != nil {
			return err
		}
		v.Set(reflect.Append(v, e.Elem()))
	}
	return nil
}

func intToBytes(i int) []byte {
	return []byte{
		byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i),
	}
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	_, err := buf.Write(b)
	return err
}

func readLen(buf *bytes.Buffer) (int, error) {
	b := make([]byte, 4)
	if _, err := buf.Read(b); err != nil {
		return 0, err
	}
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3]), nil
}
