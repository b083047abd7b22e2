package striping

// Chunk is the part of a file range that falls into one object. Offset is relative to
// the start of the object, BufOffset to the start of the caller's buffer.
type Chunk struct {
	ObjectIndex int64
	Offset      int64
	Size        int64
	BufOffset   int64
}

// Split cuts [offset, offset+size) into one chunk per object it touches, in file order.
func Split(offset, size, stripeSize int64) []Chunk {
	if size <= 0 || stripeSize <= 0 || offset < 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (offset%stripeSize+size)/stripeSize+1)
	objectIndex := offset / stripeSize
	var bufOffset int64

	for remaining := size; remaining > 0; {
		intraOffset := offset % stripeSize
		chunk := min(stripeSize-intraOffset, remaining)

		chunks = append(chunks, Chunk{
			ObjectIndex: objectIndex,
			Offset:      intraOffset,
			Size:        chunk,
			BufOffset:   bufOffset,
		})

		offset += chunk
		bufOffset += chunk
		remaining -= chunk
		objectIndex++
	}

	return chunks
}

// FileOffset is the file offset of the first byte of the chunk.
func (c Chunk) FileOffset(stripeSize int64) int64 {
	return c.ObjectIndex*stripeSize + c.Offset
}
