// Command chat is an interactive terminal client for the room server.
// With -room it joins an existing room; without it, it creates one and
// prints the code to share.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dungeonparty/room-server/internal/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "adventurer", "display name")
	room := flag.String("room", "", "room code to join (empty creates a new room)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlers := client.Handlers{
		OnSnapshot: func(roomCode string, members []client.Member) {
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.DisplayName)
			}
			fmt.Printf("-- room %s: %s (%d/4)\n", roomCode, strings.Join(names, ", "), len(members))
		},
		OnChat: func(msg client.ChatMessage) {
			fmt.Printf("[%s] %s: %s\n", msg.SentAt.Format("15:04:05"), msg.DisplayName, msg.Body)
		},
		OnHistory: func(_ string, msgs []client.ChatMessage) {
			for _, msg := range msgs {
				fmt.Printf("[%s] %s: %s\n", msg.SentAt.Format("15:04:05"), msg.DisplayName, msg.Body)
			}
		},
		OnError: func(code, msg string) {
			fmt.Printf("!! %s: %s\n", code, msg)
		},
		OnDisconnect: func(err error) {
			fmt.Printf("!! disconnected: %v\n", err)
		},
	}

	session, err := client.Dial(ctx, *addr, handlers, client.Options{Rejoin: true})
	if err != nil {
		return err
	}
	defer session.Close()

	if *room == "" {
		code, err := session.CreateRoom(ctx, *name)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		fmt.Printf("Created room %s -- share this code to invite others.\n", code)
	} else {
		if err := session.JoinRoom(ctx, *room, *name); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		fmt.Printf("Joined room %s as %s.\n", session.RoomCode(), *name)
	}
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			leaveCtx := context.Background()
			_ = session.Leave(leaveCtx)
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = session.Leave(context.Background())
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := session.Post(ctx, line); err != nil {
				fmt.Printf("!! send failed: %v\n", err)
			}
		}
	}
}
