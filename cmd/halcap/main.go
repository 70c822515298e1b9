package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/gen2brain/audiohw"
	"github.com/gen2brain/audiohw/route"
)

var inDeviceNames = map[string]uint32{
	"builtin-mic": audiohw.DeviceInBuiltinMic,
	"back-mic":    audiohw.DeviceInBackMic,
	"headset":     audiohw.DeviceInWiredHeadset,
	"sco":         audiohw.DeviceInBluetoothSCOHeadset,
}

func main() {
	var (
		paths    string
		device   string
		rate     int
		duration int
		mute     bool
		debug    bool
	)

	flag.StringVar(&paths, "paths", "/etc/audiohw/paths.yaml", "The mixer path table (YAML)")
	flag.StringVar(&device, "device", "builtin-mic", "The input device (builtin-mic, back-mic, headset, sco)")
	flag.IntVar(&rate, "rate", 16000, "The client sample rate in Hz")
	flag.IntVar(&duration, "duration", 5, "The duration of the capture in seconds")
	flag.BoolVar(&mute, "mute", false, "Capture with the microphone muted (zeros)")
	flag.BoolVar(&debug, "debug", false, "Log stream activity to stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <output-wav-file>\n", os.Args[0])
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

	mask, ok := inDeviceNames[strings.ToLower(device)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown input device: %s\n", device)
		os.Exit(1)
	}

	outputPath := flag.Arg(0)

	dev, err := audiohw.Open(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	dev.SetMicMute(mute)

	in, err := dev.OpenInputStream(mask, uint32(rate), 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening input stream: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	wavFile, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating WAV file: %v\n", err)
		os.Exit(1)
	}
	defer wavFile.Close()

	encoder := wav.NewEncoder(wavFile, rate, 16, 1, 1)
	defer encoder.Close()

	fmt.Printf("Capturing from %s at %d Hz for %d seconds\n", device, rate, duration)
	fmt.Printf("Client buffer: %d bytes\n", in.BufferSize())

	chunkSamples := in.BufferSize() / 2
	block := make([]int16, chunkSamples)
	pcmBuffer := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  rate,
		},
		Data: make([]int, chunkSamples),
	}

	totalFrames := rate * duration
	captured := 0
	startTime := time.Now()

	for captured < totalFrames {
		n, err := in.Read(block)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading from input stream: %v\n", err)
			os.Exit(1)
		}

		for i := 0; i < n; i++ {
			pcmBuffer.Data[i] = int(block[i])
		}

		if err := encoder.Write(&audio.IntBuffer{
			Format:         pcmBuffer.Format,
			Data:           pcmBuffer.Data[:n],
			SourceBitDepth: 16,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing WAV data: %v\n", err)
			os.Exit(1)
		}

		captured += n
	}

	fmt.Printf("Captured %d frames in %v\n", captured, time.Since(startTime).Round(time.Millisecond))
}
