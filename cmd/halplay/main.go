package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/gen2brain/audiohw"
	"github.com/gen2brain/audiohw/route"
)

var outDeviceNames = map[string]uint32{
	"earpiece":  audiohw.DeviceOutEarpiece,
	"speaker":   audiohw.DeviceOutSpeaker,
	"headset":   audiohw.DeviceOutWiredHeadset,
	"headphone": audiohw.DeviceOutWiredHeadphone,
	"hdmi":      audiohw.DeviceOutAuxDigital,
}

func main() {
	var (
		paths    string
		device   string
		lowPower bool
		debug    bool
	)

	flag.StringVar(&paths, "paths", "/etc/audiohw/paths.yaml", "The mixer path table (YAML)")
	flag.StringVar(&device, "device", "speaker", "The output device (earpiece, speaker, headset, headphone, hdmi)")
	flag.BoolVar(&lowPower, "low-power", false, "Use the deep-buffer (long period) output")
	flag.BoolVar(&debug, "debug", false, "Log stream activity to stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav-file>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if debug {
		backend := slog.NewBackend(os.Stderr)

		logger := backend.Logger("AHAL")
		logger.SetLevel(slog.LevelTrace)
		audiohw.UseLogger(logger)

		logger = backend.Logger("ROUT")
		logger.SetLevel(slog.LevelTrace)
		route.UseLogger(logger)
	}

	mask, ok := outDeviceNames[strings.ToLower(device)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown output device: %s\n", device)
		os.Exit(1)
	}

	wavPath := flag.Arg(0)
	wavFile, err := os.Open(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening WAV file: %v\n", err)
		os.Exit(1)
	}
	defer wavFile.Close()

	decoder := wav.NewDecoder(wavFile)
	if !decoder.IsValidFile() {
		fmt.Fprintln(os.Stderr, "Invalid WAV file")
		os.Exit(1)
	}

	// The playback surface is fixed: stereo s16 at 44100 Hz. Anything
	// else would need an offline conversion first.
	if decoder.NumChans != 2 || decoder.BitDepth != 16 || decoder.SampleRate != audiohw.ClientOutRate {
		fmt.Fprintf(os.Stderr, "WAV must be stereo, 16-bit, %d Hz (got %d channels, %d bit, %d Hz)\n",
			audiohw.ClientOutRate, decoder.NumChans, decoder.BitDepth, decoder.SampleRate)
		os.Exit(1)
	}

	dev, err := audiohw.Open(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	out, err := dev.OpenOutputStream(mask, lowPower)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output stream: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	fmt.Printf("Playing WAV file: %s\n", wavPath)
	fmt.Printf("Output device: %s, latency: %d ms, buffer: %d bytes\n",
		device, out.Latency(), out.BufferSize())

	// One client buffer per write, as a mixer would deliver it.
	chunkSamples := out.BufferSize() / 2
	pcmBuffer := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(decoder.NumChans),
			SampleRate:  int(decoder.SampleRate),
		},
		Data: make([]int, chunkSamples),
	}

	block := make([]int16, chunkSamples)
	framesWritten := uint32(0)
	startTime := time.Now()

	for {
		n, err := decoder.PCMBuffer(pcmBuffer)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			fmt.Fprintf(os.Stderr, "Error reading PCM buffer from WAV: %v\n", err)
			os.Exit(1)
		}

		if n == 0 {
			break
		}

		samples := pcmBuffer.Data[:n]
		for i, s := range samples {
			if s > 32767 {
				s = 32767
			} else if s < -32768 {
				s = -32768
			}
			block[i] = int16(s)
		}

		if _, err := out.Write(block[:n]); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to output stream: %v\n", err)
			os.Exit(1)
		}

		framesWritten += uint32(n / 2)
	}

	fmt.Printf("Played %d frames in %v\n", framesWritten, time.Since(startTime).Round(time.Millisecond))
}
