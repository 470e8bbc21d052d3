package onepipe

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"unicode/utf16"
)

// TripleDES codec for the provider's secure fields (auth.secure, meta.bvn).
// The scheme must stay byte-for-byte compatible with the provider's Java SDK:
// UTF-16LE plaintext, MD5-extended 24-byte key, CBC with a zero IV, PKCS#7
// padding, base64 output. Do not "modernize" any of it.

// DeriveKey derives the 24-byte TripleDES key from a shared secret.
// The secret is encoded as UTF-16LE, MD5-hashed, and the 16-byte digest is
// extended with its own first 8 bytes. The extension is not a second hash;
// that quirk is required for wire compatibility.
func DeriveKey(secret string) []byte {
	sum := md5.Sum(utf16leBytes(secret))
	key := make([]byte, 0, 24)
	key = append(key, sum[:]...)
	key = append(key, sum[:8]...)
	return key
}

// Encrypt encrypts plaintext for a secure field and returns base64 ciphertext.
func Encrypt(plaintext, secret string) (string, error) {
	if plaintext == "" || secret == "" {
		return "", fmt.Errorf("%w: plaintext and secret are required", ErrInvalidInput)
	}

	block, err := des.NewTripleDESCipher(DeriveKey(secret))
	if err != nil {
		return "", err
	}

	padded := padPKCS7(utf16leBytes(plaintext), des.BlockSize)
	out := make([]byte, len(padded))
	iv := make([]byte, des.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertextB64, secret string) (string, error) {
	if ciphertextB64 == "" || secret == "" {
		return "", fmt.Errorf("%w: ciphertext and secret are required", ErrInvalidInput)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64: %v", ErrDecryptFailed, err)
	}
	if len(raw) == 0 || len(raw)%des.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrDecryptFailed, len(raw))
	}

	block, err := des.NewTripleDESCipher(DeriveKey(secret))
	if err != nil {
		return "", err
	}

	padded := make([]byte, len(raw))
	iv := make([]byte, des.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, raw)

	plain, err := unpadPKCS7(padded, des.BlockSize)
	if err != nil {
		return "", err
	}
	return utf16leString(plain)
}

// Sign computes the provider's Signature header value:
// lowercase hex MD5 of "{requestRef};{secret}" in UTF-8.
func Sign(requestRef, secret string) (string, error) {
	if requestRef == "" || secret == "" {
		return "", fmt.Errorf("%w: request_ref and secret are required", ErrInvalidInput)
	}
	sum := md5.Sum([]byte(requestRef + ";" + secret))
	return hex.EncodeToString(sum[:]), nil
}

func utf16leBytes(s string) []byte {
	codes := utf16.Encode([]rune(s))
	buf := make([]byte, len(codes)*2)
	for i, c := range codes {
		binary.LittleEndian.PutUint16(buf[i*2:], c)
	}
	return buf
}

func utf16leString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 byte length", ErrDecryptFailed)
	}
	codes := make([]uint16, len(b)/2)
	for i := range codes {
		codes[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(codes)), nil
}

func padPKCS7(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpadPKCS7(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length", ErrDecryptFailed)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryptFailed)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecryptFailed)
		}
	}
	return b[:len(b)-n], nil
}
