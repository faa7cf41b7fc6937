package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mossy-p/roomrelay/internal/meshclient"
	"github.com/mossy-p/roomrelay/internal/models"
)

var (
	joinRoom     string
	joinUsername string
	joinPassword string
	stunServers  []string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and chat from the terminal",
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().StringVarP(&joinRoom, "room", "r", "", "room name to join")
	joinCmd.Flags().StringVarP(&joinUsername, "username", "u", "", "display name")
	joinCmd.Flags().StringVarP(&joinPassword, "password", "p", "", "password")
	joinCmd.Flags().StringSliceVar(&stunServers, "stun", nil, "STUN server URLs")
	joinCmd.MarkFlagRequired("room")
	joinCmd.MarkFlagRequired("username")
	joinCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	token, err := login(serverURL, joinUsername, joinPassword)
	if err != nil {
		return err
	}

	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws"
	client, err := meshclient.Dial(wsURL, token, stunServers)
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnChat = printMessage
	client.Join(joinRoom)
	fmt.Printf("joined %q as %s (%s)\n", joinRoom, joinUsername, client.ID())

	// stdin lines become chat messages
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			client.SendText(line)
		}
		client.Leave()
		client.Close()
	}()

	return client.Run()
}

func printMessage(msg models.Message) {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
	if msg.FileURL != "" {
		fmt.Printf("[%s] %s shared %s (%s)\n", ts, msg.Sender, msg.FileName, msg.FileURL)
		return
	}
	fmt.Printf("[%s] %s: %s\n", ts, msg.Sender, msg.Content)
}

func login(baseURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected: %s", resp.Status)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("malformed login response: %w", err)
	}
	return result.Token, nil
}
