package telegram

import (
	"strings"
)

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandKeyword
	CommandInstitution
	CommandDetail
	CommandHistory
	CommandStart
	CommandHelp
)

type Command struct {
	Kind CommandKind
	// Arg - ключевое слово, организация или номер объявления
	Arg string
	// Order - bidNtceOrd для /detail
	Order string
}

// ParseCommand разбирает текст сообщения.
// /bid X и обычный текст -> поиск по названию, /instt X -> по организации,
// /detail NO [ORD] -> точный поиск по номеру.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{Kind: CommandUnknown}
	}

	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CommandKeyword, Arg: normalizeSpaces(text)}
	}

	parts := strings.SplitN(text, " ", 2)
	name := strings.ToLower(parts[0])
	// /bid@my_bot в группах
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i]
	}

	var rest string
	if len(parts) > 1 {
		rest = normalizeSpaces(parts[1])
	}

	switch name {
	case "/bid", "/search":
		return Command{Kind: CommandKeyword, Arg: rest}
	case "/instt", "/org":
		return Command{Kind: CommandInstitution, Arg: rest}
	case "/detail":
		return parseDetail(rest)
	case "/history":
		return Command{Kind: CommandHistory}
	case "/start":
		return Command{Kind: CommandStart}
	case "/help":
		return Command{Kind: CommandHelp}
	default:
		return Command{Kind: CommandUnknown, Arg: name}
	}
}

// parseDetail принимает "R26BK01234567 000" и "R26BK01234567-000"
func parseDetail(rest string) Command {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Command{Kind: CommandDetail}
	}

	no := fields[0]
	var ord string
	if len(fields) > 1 {
		ord = fields[1]
	} else if i := strings.LastIndex(no, "-"); i > 0 && i < len(no)-1 {
		no, ord = no[:i], no[i+1:]
	}
	return Command{Kind: CommandDetail, Arg: no, Order: ord}
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
