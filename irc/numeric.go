package irc

import (
	"fmt"

	"github.com/ergochat/irc-go/ircevent"
)

// Numeric reply codes the bot reacts to, taken from the client library's code list.
const (
	RplWelcome      = ircevent.RPL_WELCOME
	RplWhoisUser    = ircevent.RPL_WHOISUSER
	RplWhoisServer  = ircevent.RPL_WHOISSERVER
	RplEndOfWhois   = ircevent.RPL_ENDOFWHOIS
	RplWhoisChannel = ircevent.RPL_WHOISCHANNELS
	RplNamReply     = ircevent.RPL_NAMREPLY
	RplEndOfNames   = ircevent.RPL_ENDOFNAMES
	RplTopic        = ircevent.RPL_TOPIC
	RplMotdStart    = ircevent.RPL_MOTDSTART
	RplMotd         = ircevent.RPL_MOTD
	RplEndOfMotd    = ircevent.RPL_ENDOFMOTD

	ErrNoSuchNick       = ircevent.ERR_NOSUCHNICK
	ErrNoSuchChannel    = ircevent.ERR_NOSUCHCHANNEL
	ErrTooManyChannels  = ircevent.ERR_TOOMANYCHANNELS
	ErrNicknameInUse    = ircevent.ERR_NICKNAMEINUSE
	ErrUserNotInChannel = ircevent.ERR_USERNOTINCHANNEL
	ErrNotOnChannel     = ircevent.ERR_NOTONCHANNEL
	ErrNeedMoreParams   = ircevent.ERR_NEEDMOREPARAMS
	ErrChannelIsFull    = ircevent.ERR_CHANNELISFULL
	ErrInviteOnlyChan   = ircevent.ERR_INVITEONLYCHAN
	ErrBannedFromChan   = ircevent.ERR_BANNEDFROMCHAN
	ErrBadChannelKey    = ircevent.ERR_BADCHANNELKEY
	ErrBadChanMask      = ircevent.ERR_BADCHANMASK
	ErrChanOPrivsNeeded = ircevent.ERR_CHANOPRIVSNEEDED
)

// numericNames maps codes to their RFC names. Built at compile time; the gateway libraries
// deliver numerics as raw three digit command strings.
var numericNames = map[string]string{
	RplWelcome:                 "RPL_WELCOME",
	ircevent.RPL_YOURHOST:      "RPL_YOURHOST",
	ircevent.RPL_CREATED:       "RPL_CREATED",
	ircevent.RPL_MYINFO:        "RPL_MYINFO",
	ircevent.RPL_ISUPPORT:      "RPL_ISUPPORT",
	ircevent.RPL_LUSERCLIENT:   "RPL_LUSERCLIENT",
	ircevent.RPL_LUSEROP:       "RPL_LUSEROP",
	ircevent.RPL_LUSERUNKNOWN:  "RPL_LUSERUNKNOWN",
	ircevent.RPL_LUSERCHANNELS: "RPL_LUSERCHANNELS",
	ircevent.RPL_LUSERME:       "RPL_LUSERME",
	ircevent.RPL_LOCALUSERS:    "RPL_LOCALUSERS",
	ircevent.RPL_GLOBALUSERS:   "RPL_GLOBALUSERS",
	ircevent.RPL_AWAY:          "RPL_AWAY",
	RplWhoisUser:               "RPL_WHOISUSER",
	RplWhoisServer:             "RPL_WHOISSERVER",
	ircevent.RPL_WHOISOPERATOR: "RPL_WHOISOPERATOR",
	ircevent.RPL_WHOISIDLE:     "RPL_WHOISIDLE",
	RplEndOfWhois:              "RPL_ENDOFWHOIS",
	RplWhoisChannel:            "RPL_WHOISCHANNELS",
	ircevent.RPL_CHANNELMODEIS: "RPL_CHANNELMODEIS",
	ircevent.RPL_CREATIONTIME:  "RPL_CREATIONTIME",
	ircevent.RPL_NOTOPIC:       "RPL_NOTOPIC",
	RplTopic:                   "RPL_TOPIC",
	ircevent.RPL_TOPICTIME:     "RPL_TOPICTIME",
	RplNamReply:                "RPL_NAMREPLY",
	RplEndOfNames:              "RPL_ENDOFNAMES",
	RplMotd:                    "RPL_MOTD",
	RplMotdStart:               "RPL_MOTDSTART",
	RplEndOfMotd:               "RPL_ENDOFMOTD",

	ErrNoSuchNick:                 "ERR_NOSUCHNICK",
	ircevent.ERR_NOSUCHSERVER:     "ERR_NOSUCHSERVER",
	ErrNoSuchChannel:              "ERR_NOSUCHCHANNEL",
	ircevent.ERR_CANNOTSENDTOCHAN: "ERR_CANNOTSENDTOCHAN",
	ErrTooManyChannels:            "ERR_TOOMANYCHANNELS",
	ircevent.ERR_UNKNOWNCOMMAND:   "ERR_UNKNOWNCOMMAND",
	ircevent.ERR_NOMOTD:           "ERR_NOMOTD",
	ircevent.ERR_ERRONEUSNICKNAME: "ERR_ERRONEUSNICKNAME",
	ErrNicknameInUse:              "ERR_NICKNAMEINUSE",
	ErrUserNotInChannel:           "ERR_USERNOTINCHANNEL",
	ErrNotOnChannel:               "ERR_NOTONCHANNEL",
	ircevent.ERR_NOTREGISTERED:    "ERR_NOTREGISTERED",
	ErrNeedMoreParams:             "ERR_NEEDMOREPARAMS",
	ircevent.ERR_PASSWDMISMATCH:   "ERR_PASSWDMISMATCH",
	ircevent.ERR_YOUREBANNEDCREEP: "ERR_YOUREBANNEDCREEP",
	ircevent.ERR_LINKCHANNEL:      "ERR_LINKCHANNEL",
	ErrChannelIsFull:              "ERR_CHANNELISFULL",
	ircevent.ERR_UNKNOWNMODE:      "ERR_UNKNOWNMODE",
	ErrInviteOnlyChan:             "ERR_INVITEONLYCHAN",
	ErrBannedFromChan:             "ERR_BANNEDFROMCHAN",
	ErrBadChannelKey:              "ERR_BADCHANNELKEY",
	ErrBadChanMask:                "ERR_BADCHANMASK",
	ircevent.ERR_NEEDREGGEDNICK:   "ERR_NEEDREGGEDNICK",
	ErrChanOPrivsNeeded:           "ERR_CHANOPRIVSNEEDED",
}

// NumericName returns the RFC name of code, or "UNKNOWN_<code>" for codes outside the table.
func NumericName(code string) string {
	if n, ok := numericNames[code]; ok {
		return n
	}
	return "UNKNOWN_" + code
}

// NumericCodes returns every three digit code from 001 to 999, for gateways that register
// per-command callbacks and must not lose numerics missing from the name table.
func NumericCodes() []string {
	out := make([]string, 0, 999)
	for i := 1; i <= 999; i++ {
		out = append(out, fmt.Sprintf("%03d", i))
	}
	return out
}

// IsError reports whether code is in the 4xx/5xx error range.
func IsError(code string) bool {
	return len(code) == 3 && (code[0] == '4' || code[0] == '5')
}
