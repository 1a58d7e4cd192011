/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room full")
	ErrGameInProgress = errors.New("game in progress")
	ErrServerFull     = errors.New("server full")
)

// User-facing error notices, sent to the offending connection as an
// "error" event. None of these ever end a room or the process.
const (
	errRoomNotFound        = "That room ID does not exist."
	errRoomFull            = "The room is full. (Maximum 8 players)"
	errGameInProgress      = "A game is already in progress. Wait for it to finish."
	errNotEnoughPlayers    = "At least 4 players are needed to start the game."
	errGameAborted         = "The game was ended because too many players left."
	errNotEnoughToContinue = "Not enough players to continue the game."
	errInvalidVoteTarget   = "That player is not in the room."
	errServerFull          = "The server cannot host any more rooms right now."
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
