package controlrpc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/mitchellh/hashstructure"
)

// sign computes the authentication hash of a payload.
func sign(p *Payload, secret string) ([]byte, error) {

	hash, err := payloadHash(p)
	if err != nil {
		return nil, err
	}

	digest := hmac.New(sha256.New, []byte(secret))
	if _, err := digest.Write(hash); err != nil {
		return nil, err
	}

	return digest.Sum(nil), nil
}

// checkValidity checks if the received message is valid
func checkValidity(req *Request, secret string) bool {

	expected, err := sign(&req.Payload, secret)
	if err != nil {
		return false
	}

	return hmac.Equal(req.HashAuth, expected)
}

// payloadHash returns the hash of the payload
func payloadHash(payload interface{}) ([]byte, error) {

	hash, err := hashstructure.Hash(payload, nil)
	if err != nil {
		return []byte{}, err
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, hash)
	return buf, nil
}
