// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"strings"
)

// Argument is a single QEMU option, optionally carrying a value. An argument
// is either unique, meaning its name may appear only once in an invocation,
// or repeatable, meaning the name may recur as long as the values differ.
type Argument struct {
	name       string
	value      string
	repeatable bool
}

// UniqueArg returns an [Argument] whose name may appear only once. Multiple
// values are joined into a single comma-separated option value.
func UniqueArg(name string, value ...string) Argument {
	return Argument{
		name:  name,
		value: strings.Join(value, ","),
	}
}

// RepeatableArg returns an [Argument] whose name may recur with distinct
// values.
func RepeatableArg(name string, value ...string) Argument {
	return Argument{
		name:       name,
		value:      strings.Join(value, ","),
		repeatable: true,
	}
}

// String implements [fmt.Stringer].
func (a Argument) String() string {
	s := "-" + a.name
	if a.value != "" {
		s += " " + a.value
	}

	return s
}

// collisionKey identifies the uniqueness domain of the argument. Unique
// arguments collide by name alone, repeatable ones by name and value.
func (a Argument) collisionKey() string {
	if a.repeatable {
		return a.name + "=" + a.value
	}

	return a.name
}

// BuildArgumentStrings flattens the [Argument] list into the string slice
// form [os/exec.Command] expects, enforcing the uniqueness constraints.
func BuildArgumentStrings(args []Argument) ([]string, error) {
	argStrings := make([]string, 0, len(args))
	seen := make(map[string]Argument, len(args))

	for _, arg := range args {
		key := arg.collisionKey()
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf(
				"%w: %s, %s", ErrArgumentCollision, arg, prev,
			)
		}

		seen[key] = arg

		argStrings = append(argStrings, "-"+arg.name)

		if arg.value != "" {
			argStrings = append(argStrings, arg.value)
		}
	}

	return argStrings, nil
}
