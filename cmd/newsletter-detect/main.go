package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/di"
	"github.com/mikey/newsletter-filter/internal/ports"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run classifies a single email read from a file or stdin
func run(flags *di.CLIFlags, logger *zap.Logger, emailFilter ports.EmailFilter) error {
	defer logger.Sync()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return err
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Error("Failed to parse email", zap.Error(err))
		return err
	}

	from := msg.Header.Get("From")
	to := msg.Header.Get("To")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Error("Failed to read email body", zap.Error(err))
		return err
	}

	email := &core.Email{
		MessageID: msg.Header.Get("Message-Id"),
		From:      from,
		To:        strings.Split(to, ","),
		Subject:   subject,
		Body:      string(bodyBytes),
		Headers:   make(map[string][]string),
	}

	for k, v := range msg.Header {
		email.Headers[k] = v
	}

	if _, err := emailFilter.ProcessEmail(context.Background(), email); err != nil {
		return err
	}
	return nil
}
