package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/nlu/internal/domain"
)

var (
	askAddr    string
	askUserID  string
	askTimeout time.Duration
	askConfig  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Send questions to a running server",
	Long: `Sends each argument as one question over the TCP protocol and prints the reply.
Without arguments, questions are read line by line from stdin.
With --config, each line is sent as config_content instead; an empty line lists topics.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askAddr, "addr", "a", "127.0.0.1:7000", "Server TCP address")
	askCmd.Flags().StringVarP(&askUserID, "userid", "u", "A0001", "User id sent with every frame")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 10*time.Second, "Dial and read timeout")
	askCmd.Flags().BoolVar(&askConfig, "config", false, "Send config_content frames instead of questions")
}

func runAsk(cmd *cobra.Command, args []string) error {
	conn, err := net.DialTimeout("tcp", askAddr, askTimeout)
	if err != nil {
		return errors.Wrapf(err, "dial %s", askAddr)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		for _, q := range args {
			if err := exchange(conn, reader, out, q); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" && !askConfig {
			continue
		}
		if err := exchange(conn, reader, out, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func exchange(conn net.Conn, reader *bufio.Reader, out io.Writer, text string) error {
	req := domain.Request{UserID: askUserID}
	if askConfig {
		req.ConfigContent = &text
	} else {
		req.AskContent = &text
	}

	frame, err := json.Marshal(req)
	if err != nil {
		return err
	}

	_ = conn.SetDeadline(time.Now().Add(askTimeout))
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		return errors.Wrap(err, "write frame")
	}

	reply, err := reader.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "read reply")
	}

	_, err = fmt.Fprint(out, string(reply))
	return err
}
