package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/client"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ws"
)

// Demo client: joins a document, appends every stdin line as an insert at
// the end of the document, "/save" saves, "/sync" requests a catch-up,
// "/quit" leaves.

type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) SendOperation(docID, clientID string, clientSeq uint64, op operation.Operation) error {
	return s.conn.WriteJSON(ws.ClientMessage{
		Type:      "operation",
		DocID:     docID,
		ClientID:  clientID,
		ClientSeq: clientSeq,
		Op:        &op,
	})
}

func (s *wsSender) SendSave(docID string) error {
	return s.conn.WriteJSON(ws.ClientMessage{Type: "save", DocID: docID})
}

type serverMessage struct {
	Type            string               `json:"type"`
	SessionID       string               `json:"sessionId,omitempty"`
	DocID           string               `json:"docId,omitempty"`
	Content         string               `json:"content,omitempty"`
	Version         uint64               `json:"version,omitempty"`
	Op              *operation.Operation `json:"op,omitempty"`
	NewVersion      uint64               `json:"newVersion,omitempty"`
	AuthorID        uint64               `json:"authorId,omitempty"`
	AuthorName      string               `json:"authorName,omitempty"`
	CurrentVersion  uint64               `json:"currentVersion,omitempty"`
	CurrentContent  string               `json:"currentContent,omitempty"`
	ExpectedVersion uint64               `json:"expectedVersion,omitempty"`
	Code            string               `json:"code,omitempty"`
	Message         string               `json:"message,omitempty"`
	UserName        string               `json:"userName,omitempty"`
	User            *struct {
		Name string `json:"name"`
	} `json:"user,omitempty"`
	Ops []struct {
		Op         operation.Operation `json:"op"`
		NewVersion uint64              `json:"newVersion"`
		AuthorID   uint64              `json:"authorId"`
	} `json:"ops,omitempty"`
}

func main() {
	var (
		url    = flag.String("url", "ws://127.0.0.1:3001/collab/ws", "server websocket endpoint")
		token  = flag.String("token", "", "access token")
		docID  = flag.String("doc", "", "document id to join")
		userID = flag.Uint64("user", 0, "local user id (matches the token subject)")
	)
	flag.Parse()
	if *token == "" || *docID == "" {
		log.Fatal("usage: client -token <jwt> -doc <docId> [-user <id>]")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url+"?token="+*token, nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	var pipe *client.Pipeline
	sender := &wsSender{conn: conn}

	ready := make(chan struct{})
	go func() {
		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("connection closed: %v", err)
				os.Exit(0)
			}
			switch msg.Type {
			case "welcome":
				pipe = client.NewPipeline(*docID, msg.SessionID, *userID, sender)
				pipe.OnChange = func(content string, version uint64) {
					fmt.Printf("-- v%d --\n%s\n", version, content)
				}
				_ = conn.WriteJSON(ws.ClientMessage{Type: "join", DocID: *docID})
			case "document-state":
				pipe.SetDocumentState(msg.Content, msg.Version)
				close(ready)
			case "operation-acknowledged":
				_ = pipe.HandleAck(msg.NewVersion)
			case "operation-applied":
				if msg.Op != nil {
					pipe.HandleRemote(*msg.Op, msg.NewVersion, msg.AuthorID)
				}
			case "catch-up":
				for _, o := range msg.Ops {
					pipe.HandleRemote(o.Op, o.NewVersion, o.AuthorID)
				}
			case "version-conflict":
				log.Printf("conflict: resyncing to v%d", msg.CurrentVersion)
				pipe.HandleConflict(msg.CurrentContent, msg.CurrentVersion)
			case "user-joined":
				if msg.User != nil {
					log.Printf("user joined: %s", msg.User.Name)
				}
			case "user-left":
				if msg.User != nil {
					log.Printf("user left: %s", msg.User.Name)
				}
			case "typing-start", "typing-stop":
				log.Printf("%s: %s", msg.Type, msg.UserName)
			case "document-saved":
				log.Printf("document saved at v%d", msg.Version)
			case "error":
				log.Printf("server error: %s %s", msg.Code, msg.Message)
			}
		}
	}()

	<-ready
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			_ = conn.WriteJSON(ws.ClientMessage{Type: "leave", DocID: *docID})
			return
		case line == "/save":
			_ = pipe.Save()
		case line == "/sync":
			_, version := pipe.State()
			_ = conn.WriteJSON(ws.ClientMessage{Type: "catch-up", DocID: *docID, FromVersion: version})
		case strings.TrimSpace(line) != "":
			content, _ := pipe.State()
			if err := pipe.Insert(len([]rune(content)), line+"\n"); err != nil {
				log.Printf("insert failed: %v", err)
			}
		}
	}
}
