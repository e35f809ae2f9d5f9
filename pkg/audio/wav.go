package audio

// EncodeWAV wraps raw 16-bit mono PCM in a RIFF/WAVE header at the pipeline
// sample rate, for workers that refuse bare PCM uploads.
func EncodeWAV(pcm []byte) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := SampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	putUint32LE(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	putUint32LE(header[16:20], 16)
	putUint16LE(header[20:22], 1)
	putUint16LE(header[22:24], numChannels)
	putUint32LE(header[24:28], uint32(SampleRate))
	putUint32LE(header[28:32], uint32(byteRate))
	putUint16LE(header[32:34], uint16(blockAlign))
	putUint16LE(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	putUint32LE(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
