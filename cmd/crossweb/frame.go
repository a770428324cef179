// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/cobra"
)

func newFrameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Encode and decode IPC wire frames",
		Long: "Debug the wire format id<RS>command<RS>base64(payload). The record separator (0x1E) is " +
			"awkward to type, so --sep substitutes a printable separator on input and output.",
	}

	cmd.PersistentFlags().String("sep", "", "printable stand-in for the 0x1E separator")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode <id> <command> [payload]",
			Short: "Encode a request frame",
			Args:  cobra.RangeArgs(2, 3),
			RunE:  runFrameEncode,
		},
		&cobra.Command{
			Use:   "decode [frame]",
			Short: "Decode a request frame (reads stdin when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runFrameDecode,
		},
	)
	return cmd
}

func frameCodec() (*ipc.Codec, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ipc.NewCodec(ipc.Limits{
		MaxIDLen:      cfg.IPC.MaxIDLen,
		MaxCommandLen: cfg.IPC.MaxCommandLen,
		MaxPayloadLen: cfg.IPC.MaxPayloadLen,
	}), nil
}

func runFrameEncode(cmd *cobra.Command, args []string) error {
	codec, err := frameCodec()
	if err != nil {
		return err
	}

	var payload []byte
	if len(args) == 3 {
		payload = []byte(args[2])
	}
	frame, err := codec.Encode(args[0], args[1], payload)
	if err != nil {
		return err
	}

	if sep, _ := cmd.Flags().GetString("sep"); sep != "" {
		frame = strings.ReplaceAll(frame, string(ipc.Separator), sep)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), frame)
	return err
}

func runFrameDecode(cmd *cobra.Command, args []string) error {
	codec, err := frameCodec()
	if err != nil {
		return err
	}

	var frame string
	if len(args) == 1 {
		frame = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return cwerr.Errorf(cwerr.CodeCLIInputInvalid, "reading frame: %w", err)
		}
		frame = strings.TrimRight(line, "\r\n")
	}
	if sep, _ := cmd.Flags().GetString("sep"); sep != "" {
		frame = strings.ReplaceAll(frame, sep, string(ipc.Separator))
	}

	msg, err := codec.Decode(frame)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "id:      %s\n", msg.ID)
	_, _ = fmt.Fprintf(out, "command: %s\n", msg.Command)
	_, err = fmt.Fprintf(out, "payload: %s\n", msg.Payload)
	return err
}
