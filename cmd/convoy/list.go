// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"convoy-cli/internal/registry"
)

// printModuleList writes the discovered modules grouped by group. With
// groups given, only those groups are shown; asking for a group nobody
// declared is an error so typos do not silently print nothing.
func printModuleList(w io.Writer, reg *registry.Registry, groups []string, colors bool) error {
	byGroup := reg.Groups()

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	slices.Sort(names)

	if len(groups) > 0 {
		for _, group := range groups {
			if _, ok := byGroup[group]; !ok {
				return fmt.Errorf("no such module group %q, have: %s", group, strings.Join(names, ", "))
			}
		}
		names = slices.Clone(groups)
		slices.Sort(names)
	}

	title, module, subtitle := TitleStyle.Render, ModuleStyle.Render, SubtitleStyle.Render
	if !colors {
		plain := func(strs ...string) string { return strings.Join(strs, " ") }
		title, module, subtitle = plain, plain, plain
	}

	for i, group := range names {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, title(group))

		descriptors := byGroup[group]
		width := 0
		for _, desc := range descriptors {
			width = max(width, len(desc.Name))
		}
		for _, desc := range descriptors {
			fmt.Fprintf(w, "  %s  %s\n",
				module(fmt.Sprintf("%-*s", width, desc.Name)), subtitle(desc.Description))
			if line := capabilityLine(desc); line != "" {
				fmt.Fprintf(w, "  %-*s  %s\n", width, "", subtitle(line))
			}
		}
	}
	return nil
}

func capabilityLine(desc *registry.Descriptor) string {
	var parts []string
	if len(desc.Provides) > 0 {
		parts = append(parts, "provides: "+strings.Join(desc.Provides, ", "))
	}
	if len(desc.Requires) > 0 {
		parts = append(parts, "requires: "+strings.Join(desc.Requires, ", "))
	}
	return strings.Join(parts, "; ")
}
