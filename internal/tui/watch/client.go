// Package watch is a terminal monitor for a running gateway: live dispatch
// outcomes over the SSE feed plus periodic health polls.
package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/agentgw/internal/events"
)

type eventMsg events.Event

type healthMsg struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	PendingRetries int64  `json:"pending_retries"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// subscribe connects to /events and feeds parsed events into ch until the
// connection drops.
func subscribe(apiURL, token string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest("GET", apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var seq int64
		var eventType, data string
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if data != "" {
					ch <- events.Event{Seq: seq, Type: eventType, At: time.Now(), Payload: []byte(data)}
					seq, eventType, data = 0, "", ""
				}
				continue
			}
			switch {
			case strings.HasPrefix(line, "id: "):
				if n, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					seq = n
				}
			case strings.HasPrefix(line, "event: "):
				eventType = line[7:]
			case strings.HasPrefix(line, "data: "):
				data = line[6:]
			}
		}
		return sseDisconnectedMsg{}
	}
}

// nextEvent waits for one event from the channel.
func nextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth polls /healthz.
func fetchHealth(apiURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}
