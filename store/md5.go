package store

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/tabeth/memq/models"
)

const (
	stringTransport byte = 1
	binaryTransport byte = 2
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// md5OfAttributes returns the checksum SQS clients verify for a set of
// message attributes, or nil when there are none.
func md5OfAttributes(attributes map[string]models.MessageAttributeValue) *string {
	if len(attributes) == 0 {
		return nil
	}
	sum := md5Hex(hashAttributes(attributes))
	return &sum
}

func md5OfSystemAttributes(attributes map[string]models.MessageSystemAttributeValue) *string {
	if len(attributes) == 0 {
		return nil
	}
	converted := make(map[string]models.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		converted[k] = models.MessageAttributeValue{DataType: v.DataType, StringValue: v.StringValue, BinaryValue: v.BinaryValue}
	}
	sum := md5Hex(hashAttributes(converted))
	return &sum
}

// hashAttributes creates the deterministic byte representation of message
// attributes: for each name in sorted order, the length-prefixed name, the
// length-prefixed data type, a transport byte and the length-prefixed value.
func hashAttributes(attributes map[string]models.MessageAttributeValue) []byte {
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		v := attributes[k]
		writeLengthPrefixed(&buf, []byte(k))
		writeLengthPrefixed(&buf, []byte(v.DataType))

		if strings.HasPrefix(v.DataType, "Binary") {
			buf.WriteByte(binaryTransport)
			writeLengthPrefixed(&buf, v.BinaryValue)
			continue
		}
		buf.WriteByte(stringTransport)
		var s string
		if v.StringValue != nil {
			s = *v.StringValue
		}
		writeLengthPrefixed(&buf, []byte(s))
	}
	return buf.Bytes()
}

func writeLengthPrefixed(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}
