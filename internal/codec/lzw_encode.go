package codec

// compressTIFFLZW is the inverse of decompressTIFFLZW: a TIFF-variant LZW
// encoder (deferred code-width increment, MSB-first bit packing, same code
// table layout as the decoder in lzw.go).
func compressTIFFLZW(data []byte) ([]byte, error) {
	w := &lzwEncoderState{}
	w.writeBits(lzwClearCode, 9)

	type tableKey struct {
		prefix int
		suffix byte
	}
	table := make(map[tableKey]int, 4096)
	reset := func() {
		table = make(map[tableKey]int, 4096)
		w.nextCode = lzwFirstCode
		w.codeWidth = 9
	}
	reset()

	if len(data) == 0 {
		w.writeBits(lzwEOICode, w.codeWidth)
		return w.bytes(), nil
	}

	prefix := int(data[0])
	for i := 1; i < len(data); i++ {
		suffix := data[i]
		key := tableKey{prefix: prefix, suffix: suffix}
		if code, ok := table[key]; ok {
			prefix = code
			continue
		}

		w.writeBits(prefix, w.codeWidth)

		if w.nextCode < 4096 {
			table[key] = w.nextCode
			w.nextCode++
			if w.nextCode+1 > (1<<w.codeWidth) && w.codeWidth < lzwMaxWidth {
				w.codeWidth++
			}
		} else {
			w.writeBits(lzwClearCode, w.codeWidth)
			reset()
		}

		prefix = int(suffix)
	}
	w.writeBits(prefix, w.codeWidth)
	w.writeBits(lzwEOICode, w.codeWidth)

	return w.bytes(), nil
}

type lzwEncoderState struct {
	buf       []byte
	bitBuf    uint32
	bitCount  int
	nextCode  int
	codeWidth int
}

func (w *lzwEncoderState) writeBits(code, width int) {
	w.bitBuf = (w.bitBuf << uint(width)) | uint32(code)
	w.bitCount += width
	for w.bitCount >= 8 {
		w.bitCount -= 8
		w.buf = append(w.buf, byte(w.bitBuf>>uint(w.bitCount)))
	}
}

func (w *lzwEncoderState) bytes() []byte {
	if w.bitCount > 0 {
		w.buf = append(w.buf, byte(w.bitBuf<<uint(8-w.bitCount)))
		w.bitCount = 0
	}
	return w.buf
}
