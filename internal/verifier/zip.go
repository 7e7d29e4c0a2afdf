package verifier

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xxxsen/arccheck/internal/model"
	"github.com/xxxsen/arccheck/internal/volume"
)

const (
	eocdSignature        = "PK\x05\x06"
	eocd64LocatorSig     = "PK\x06\x07"
	eocdLen              = 22
	eocd64LocatorLen     = 20
	maxZipCommentLen     = 0xffff
	msgZipSpanNoParts    = "multi-volume zip: parts not found"
	msgZipSpanNotSupport = "multi-volume zip: all parts found but the format is not supported, use RAR or 7Z"
)

// ZipVerifier decompresses every entry so the reader validates each CRC.
type ZipVerifier struct {
	ChunkSize int
}

func (v *ZipVerifier) Verify(ctx context.Context, path string) (model.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, interrupted(err)
	}
	spanned, err := isSpannedZip(path)
	if err != nil {
		return model.Fail(path, "corrupted zip archive: %v", err), nil
	}
	if spanned {
		return verifySpannedZip(path), nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return model.Fail(path, "corrupted zip archive: %v", err), nil
	}
	defer zr.Close()

	size := v.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	buf := make([]byte, size)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := readZipEntry(ctx, f, buf); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Verdict{}, interrupted(ctxErr)
			}
			return model.Fail(path, "entry %s: %v", f.Name, err), nil
		}
	}
	return model.Pass(path), nil
}

func readZipEntry(ctx context.Context, f *zip.File, buf []byte) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := rc.Read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func verifySpannedZip(path string) model.Verdict {
	set, err := volume.FindParts(path)
	if err != nil || !set.Multi() {
		return model.Fail(path, msgZipSpanNoParts)
	}
	check := volume.CheckSequence(set.Parts)
	if !check.Complete {
		return model.Fail(path, "multi-volume zip: %s", check.Message)
	}
	return model.Fail(path, msgZipSpanNotSupport)
}

// isSpannedZip looks at the end of central directory record (and its
// zip64 locator) for a disk number other than the first.
func isSpannedZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()
	tailLen := int64(eocdLen + maxZipCommentLen + eocd64LocatorLen)
	if tailLen > size {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	if _, err := f.ReadAt(tail, size-tailLen); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	idx := bytes.LastIndex(tail, []byte(eocdSignature))
	if idx < 0 || idx+eocdLen > len(tail) {
		return false, nil
	}
	diskNbr := binary.LittleEndian.Uint16(tail[idx+4:])
	dirDiskNbr := binary.LittleEndian.Uint16(tail[idx+6:])
	if diskNbr != 0 || dirDiskNbr != 0 {
		return true, nil
	}
	if loc := idx - eocd64LocatorLen; loc >= 0 && string(tail[loc:loc+4]) == eocd64LocatorSig {
		if binary.LittleEndian.Uint32(tail[loc+16:]) > 1 {
			return true, nil
		}
	}
	return false, nil
}
