package ui

import (
	"fmt"
	"io"
	"strings"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

const profileNameWidth = 24

// PrintProfiles writes one line per profile and marks the active one
func PrintProfiles(w io.Writer, profiles []pkgtypes.AWSProfile, active string) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No AWS profiles found")
		fmt.Fprintln(w, HintStyle.Render("Create profiles in ~/.aws/credentials or ~/.aws/config"))
		return
	}

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("  " + padRight("PROFILE", profileNameWidth) + " " + padRight("REGION", 16) + " SOURCE"))
	sb.WriteString("\n")
	for _, p := range profiles {
		marker := "  "
		name := NameStyle.Render(padRight(p.Name, profileNameWidth))
		if p.Name == active {
			marker = RunningStyle.Render("*") + " "
			name = AWSStyle.Render(padRight(p.Name, profileNameWidth))
		}
		sb.WriteString(marker)
		sb.WriteString(name)
		sb.WriteString(" ")
		sb.WriteString(ValueStyle.Render(padRight(orDash(p.Region), 16)))
		sb.WriteString(" ")
		sb.WriteString(MutedStyle.Render(p.Source))
		sb.WriteString("\n")
	}
	fmt.Fprint(w, sb.String())
}
