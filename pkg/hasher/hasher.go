package hasher

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Result holds the digests of one archive, computed in a single pass.
type Result struct {
	SHA256 string
	MD5    string
	Size   int64
}

// Reader digests everything read from r.
func Reader(r io.Reader) (Result, error) {
	h256 := sha256.New()
	hMD5 := md5.New()
	n, err := io.Copy(io.MultiWriter(h256, hMD5), r)
	if err != nil {
		return Result{}, fmt.Errorf("hashing: %w", err)
	}
	return Result{
		SHA256: hex.EncodeToString(h256.Sum(nil)),
		MD5:    hex.EncodeToString(hMD5.Sum(nil)),
		Size:   n,
	}, nil
}

// Bytes digests an in-memory archive.
func Bytes(data []byte) Result {
	res, _ := Reader(bytes.NewReader(data)) // reading a bytes.Reader cannot fail
	return res
}

// File digests the archive at filePath.
func File(filePath string) (_ Result, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("hashing: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("hashing %s: %w", filePath, closeErr)
		}
	}()

	res, err := Reader(file)
	if err != nil {
		return Result{}, fmt.Errorf("hashing %s: %w", filePath, err)
	}
	return res, nil
}
