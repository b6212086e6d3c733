package audio

// Sample rates used on the telephone leg of the pipeline.
const (
	// TelephoneRate is the carrier media-stream rate (G.711, 8 kHz).
	TelephoneRate = 8000

	// STTRate is the rate the transcription providers expect.
	STTRate = 16000

	// SynthesisRate is the rate the TTS providers emit.
	SynthesisRate = 24000
)

// TelephoneToSTT converts an inbound carrier frame (mu-law 8 kHz) to the PCM16
// 16 kHz format the STT pipeline consumes: decode, then upsample.
func TelephoneToSTT(mulaw []byte) []byte {
	pcm := DecodeMuLaw(mulaw)
	return ResampleMono16(pcm, TelephoneRate, STTRate)
}

// SynthesisToTelephone converts a TTS output chunk (PCM16 24 kHz) to the
// mu-law 8 kHz format the carrier accepts: downsample, then encode.
func SynthesisToTelephone(pcm []byte) []byte {
	down := ResampleMono16(pcm, SynthesisRate, TelephoneRate)
	return EncodeMuLaw(down)
}
