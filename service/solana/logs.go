package solana

import (
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ProgramInvocation is one program call reconstructed from execution logs.
type ProgramInvocation struct {
	ProgramID            solana.PublicKey `json:"program_id"`
	Depth                int              `json:"depth"`
	ComputeUnitsConsumed *uint64          `json:"compute_units_consumed,omitempty"`
	Succeeded            bool             `json:"succeeded"`
	Failure              string           `json:"failure,omitempty"`
	Messages             []string         `json:"messages,omitempty"`
}

const programLogPrefix = "Program "

// ParseInvocations rebuilds the program call sequence from log lines, in
// invocation order. Lines that do not follow the runtime's format are ignored,
// so truncated logs yield a partial sequence.
func ParseInvocations(logs []string) []ProgramInvocation {
	var (
		invocations []ProgramInvocation
		stack       []int
	)
	top := func(program solana.PublicKey) (int, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		i := stack[len(stack)-1]
		return i, invocations[i].ProgramID.Equals(program)
	}

	for _, line := range logs {
		rest, ok := strings.CutPrefix(line, programLogPrefix)
		if !ok {
			continue
		}
		if msg, ok := strings.CutPrefix(rest, "log: "); ok {
			if len(stack) > 0 {
				i := stack[len(stack)-1]
				invocations[i].Messages = append(invocations[i].Messages, msg)
			}
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 2 {
			continue
		}
		program, err := solana.PublicKeyFromBase58(fields[0])
		if err != nil {
			continue
		}

		switch {
		case fields[1] == "invoke" && len(fields) == 3:
			depth, ok := parseDepth(fields[2])
			if !ok {
				continue
			}
			invocations = append(invocations, ProgramInvocation{ProgramID: program, Depth: depth})
			stack = append(stack, len(invocations)-1)

		case fields[1] == "consumed" && len(fields) >= 6 && fields[3] == "of":
			units, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				continue
			}
			if i, ok := top(program); ok {
				invocations[i].ComputeUnitsConsumed = &units
			}

		case fields[1] == "success":
			if i, ok := top(program); ok {
				invocations[i].Succeeded = true
				stack = stack[:len(stack)-1]
			}

		case fields[1] == "failed:":
			if i, ok := top(program); ok {
				invocations[i].Failure = strings.Join(fields[2:], " ")
				stack = stack[:len(stack)-1]
			}
		}
	}
	return invocations
}

// AttributeComputeUnits sets ComputeUnitsConsumed on top-level instructions in
// place. Each depth-1 invocation is matched to the next instruction, after the
// previous match, that targets the same program.
func AttributeComputeUnits(logs []string, instructions []InstructionInfo) {
	next := 0
	for _, inv := range ParseInvocations(logs) {
		if inv.Depth != 1 {
			continue
		}
		for i := next; i < len(instructions); i++ {
			if instructions[i].unresolved || !instructions[i].ProgramID.Equals(inv.ProgramID) {
				continue
			}
			if inv.ComputeUnitsConsumed != nil {
				units := *inv.ComputeUnitsConsumed
				instructions[i].ComputeUnitsConsumed = &units
			}
			next = i + 1
			break
		}
	}
}

// parseDepth reads an invoke depth written as "[n]".
func parseDepth(s string) (int, bool) {
	inner, ok := strings.CutPrefix(s, "[")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return 0, false
	}
	depth, err := strconv.Atoi(inner)
	if err != nil || depth < 1 {
		return 0, false
	}
	return depth, true
}
