// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/orientation_tracker/internal/listener"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// SerialAttitudeSource reads an external attitude sensor that reports roll
// as NMEA 0183 XDR sentences, e.g.
//
//	$YXXDR,A,-2.1,D,PITCH,A,12.5,D,ROLL*hh
//
// and delivers the roll as device tilt. The port is read continuously; the
// listener only receives samples while enabled.
type SerialAttitudeSource struct {
	opts     serial.OpenOptions
	listener listener.Gate[int]
}

func NewSerialAttitudeSource(port string, baud uint) *SerialAttitudeSource {
	return &SerialAttitudeSource{
		opts: serial.OpenOptions{
			PortName:              port,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
	}
}

func (s *SerialAttitudeSource) EnableTiltSource(fn func(degrees int)) error {
	s.listener.Set(fn)
	return nil
}

func (s *SerialAttitudeSource) DisableTiltSource() {
	s.listener.Clear()
}

// Run opens the serial port and reads it until ctx is cancelled or the port
// fails.
func (s *SerialAttitudeSource) Run(ctx context.Context) error {
	port, err := serial.Open(s.opts)
	if err != nil {
		return fmt.Errorf("attitude: open %s: %w", s.opts.PortName, err)
	}
	log.Printf("attitude: serial port opened on %s at %d baud", s.opts.PortName, s.opts.BaudRate)

	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	err = s.Consume(port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Consume reads NMEA lines from r until EOF and delivers every roll reading.
func (s *SerialAttitudeSource) Consume(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if roll, ok := RollFromSentence(line); ok {
				s.listener.Deliver(orientation.Normalize(int(math.Round(roll))))
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("attitude: read: %w", err)
		}
	}
}

// RollFromSentence extracts the roll angle in degrees from an XDR sentence.
// Anything else (other sentences, noise, bad checksums) yields false.
func RollFromSentence(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return 0, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy sensor or partial sentence
		return 0, false
	}
	if sentence.DataType() != nmea.TypeXDR {
		return 0, false
	}

	m := sentence.(nmea.XDR)
	for _, meas := range m.Measurements {
		if meas.TransducerType == "A" && meas.Unit == "D" && strings.EqualFold(meas.TransducerName, "ROLL") {
			return meas.Value, true
		}
	}
	return 0, false
}
