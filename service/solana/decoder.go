package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brojonat/solscope/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// ErrNoMetadata is returned when a record carries no execution metadata.
var ErrNoMetadata = errors.New("transaction has no metadata")

// Decoder assembles TransactionData from RPC transaction records.
// A Decoder holds no per-transaction state and is safe for concurrent use.
type Decoder struct {
	classifier     *Classifier
	tokenTransfers TokenTransferExtractor
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClassifier replaces the default opcode tables.
func WithClassifier(c *Classifier) DecoderOption {
	return func(d *Decoder) {
		d.classifier = c
	}
}

// WithTokenTransferExtractor replaces the log-based token transfer extractor.
func WithTokenTransferExtractor(e TokenTransferExtractor) DecoderOption {
	return func(d *Decoder) {
		d.tokenTransfers = e
	}
}

// NewDecoder creates a Decoder. If metrics is nil, no metrics will be recorded.
func NewDecoder(m *metrics.Metrics, logger *slog.Logger, opts ...DecoderOption) *Decoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Decoder{
		classifier:     DefaultClassifier(),
		tokenTransfers: NoopTokenTransfers{},
		metrics:        m,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeRecord decodes a record using its first signature. Records without a
// readable signature decode under the zero signature.
func (d *Decoder) DecodeRecord(rec *TransactionRecord) (*TransactionData, error) {
	var sig solana.Signature
	if rec != nil && len(rec.Transaction.Signatures) > 0 {
		parsed, err := solana.SignatureFromBase58(rec.Transaction.Signatures[0])
		if err != nil {
			d.logger.Debug("record signature is not valid base58", "signature", rec.Transaction.Signatures[0], "error", err)
		} else {
			sig = parsed
		}
	}
	return d.Decode(sig, rec)
}

// Decode builds the TransactionData for one record. It fails only when the
// record has no metadata or a top-level compiled instruction names a program
// index outside the account list; every other malformed field falls back to a
// placeholder.
func (d *Decoder) Decode(signature solana.Signature, rec *TransactionRecord) (*TransactionData, error) {
	start := time.Now()
	data, err := d.decode(signature, rec)
	duration := time.Since(start).Seconds()

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		d.logger.Debug("failed to decode transaction", "signature", signature.String(), "error", err)
	case data.Status.Failed:
		outcome = "failed"
	}

	if d.metrics != nil {
		d.metrics.RecordTransactionDecoded(outcome, duration)
		if data != nil {
			d.recordInstructionMetrics(data)
		}
	}
	return data, err
}

func (d *Decoder) decode(signature solana.Signature, rec *TransactionRecord) (*TransactionData, error) {
	if rec == nil || rec.Meta == nil {
		return nil, ErrNoMetadata
	}
	meta := rec.Meta
	msg := rec.Transaction.Message

	accounts, invalid, blockhash := d.resolveAccounts(signature, msg, meta)

	norm := NewNormalizer(d.classifier, accounts)
	norm.MarkInvalidAccounts(invalid...)
	norm.OnDegraded = d.degraded

	instructions, err := d.normalizeTopLevel(norm, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize instructions: %w", err)
	}
	inner := d.normalizeInner(signature, norm, meta.InnerInstructions)

	logs := meta.LogMessages
	if logs == nil {
		logs = []string{}
	}
	AttributeComputeUnits(logs, instructions)

	all := make([]InstructionInfo, 0, len(instructions)+len(inner))
	all = append(all, instructions...)
	for _, ix := range inner {
		all = append(all, ix.InstructionInfo)
	}

	keys := make([]solana.PublicKey, len(accounts))
	for i, a := range accounts {
		keys[i] = a.Pubkey
	}
	tokenTransfers := d.tokenTransfers.ExtractTokenTransfers(logs, keys)
	if tokenTransfers == nil {
		tokenTransfers = []TokenTransfer{}
	}

	status := Success()
	if meta.Failed() {
		status = Failure(renderTransactionError(meta.Err))
	}

	return &TransactionData{
		Signature:            signature,
		Slot:                 rec.Slot,
		BlockTime:            blockTime(rec.BlockTime),
		Fee:                  meta.Fee,
		Status:               status,
		Instructions:         instructions,
		InnerInstructions:    inner,
		Accounts:             accounts,
		Logs:                 logs,
		ComputeUnitsConsumed: meta.ComputeUnitsConsumed,
		Version:              versionTag(rec.Version),
		RecentBlockhash:      blockhash,
		TokenTransfers:       tokenTransfers,
		SolTransfers:         ExtractSolTransfers(all),
		Memos:                ExtractMemos(all),
		PriorityFee:          ExtractPriorityFee(all),
		MaxComputeUnits:      ExtractMaxComputeUnits(all),
	}, nil
}

func (d *Decoder) resolveAccounts(signature solana.Signature, msg Message, meta *TransactionMeta) ([]AccountMeta, []int, string) {
	var (
		accounts  []AccountMeta
		invalid   []int
		blockhash string
	)
	switch m := msg.(type) {
	case *CompiledMessage:
		accounts, invalid = ResolveCompiledAccounts(m.AccountKeys, m.Header, meta.PreBalances, meta.PostBalances)
		blockhash = m.RecentBlockhash
	case *ParsedMessage:
		accounts, invalid = ResolveParsedAccounts(m.AccountKeys, meta.PreBalances, meta.PostBalances)
		blockhash = m.RecentBlockhash
	default:
		accounts = []AccountMeta{}
	}

	for _, i := range invalid {
		d.degraded(DegradedInvalidAccountKey)
		d.logger.Debug("account key is not a valid address, using zero key",
			"signature", signature.String(),
			"account_index", i,
		)
	}
	return accounts, invalid, blockhash
}

// normalizeTopLevel fails on an unresolvable compiled instruction in a
// compiled message. In a parsed message the same instruction degrades to a
// placeholder.
func (d *Decoder) normalizeTopLevel(norm *Normalizer, msg Message) ([]InstructionInfo, error) {
	var (
		ixs      Instructions
		isParsed bool
	)
	switch m := msg.(type) {
	case *CompiledMessage:
		ixs = m.Instructions
	case *ParsedMessage:
		ixs = m.Instructions
		isParsed = true
	}

	out := make([]InstructionInfo, 0, len(ixs))
	for i, ix := range ixs {
		info, err := norm.Normalize(ix)
		if err != nil {
			compiled, ok := ix.(*CompiledInstruction)
			if !isParsed || !ok {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			d.degraded(DegradedUnresolvedCompiled)
			info = compiledPlaceholder(compiled)
		}
		out = append(out, info)
	}
	return out, nil
}

// normalizeInner flattens inner instruction groups in order. Instructions
// that fail to normalize are skipped.
func (d *Decoder) normalizeInner(signature solana.Signature, norm *Normalizer, groups []InnerInstructions) []InnerInstructionInfo {
	out := []InnerInstructionInfo{}
	for _, group := range groups {
		for i, ix := range group.Instructions {
			info, err := norm.Normalize(ix)
			if err != nil {
				d.logger.Debug("skipping inner instruction",
					"signature", signature.String(),
					"parent_index", group.Index,
					"inner_index", i,
					"error", err,
				)
				d.degraded(DegradedUnresolvedCompiled)
				continue
			}
			out = append(out, InnerInstructionInfo{ParentIndex: group.Index, InstructionInfo: info})
		}
	}
	return out
}

func (d *Decoder) degraded(reason string) {
	if d.metrics != nil {
		d.metrics.RecordInstructionDegraded(reason)
	}
}

func (d *Decoder) recordInstructionMetrics(data *TransactionData) {
	record := func(ix InstructionInfo) {
		program := "unknown"
		if ix.ProgramName != nil {
			program = *ix.ProgramName
		}
		recognized := ix.InstructionType != UnknownInstruction && ix.InstructionType != UnknownCompiledInstruction
		d.metrics.RecordInstructionClassified(program, recognized)
	}
	for _, ix := range data.Instructions {
		record(ix)
	}
	for _, ix := range data.InnerInstructions {
		record(ix.InstructionInfo)
	}

	d.metrics.RecordDerivedEvents("sol_transfer", len(data.SolTransfers))
	d.metrics.RecordDerivedEvents("token_transfer", len(data.TokenTransfers))
	d.metrics.RecordDerivedEvents("memo", len(data.Memos))
	if data.PriorityFee != nil {
		d.metrics.RecordDerivedEvents("priority_fee", 1)
	}
}

func blockTime(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

// versionTag renders "legacy" or the numeric version. Absent versions are nil.
func versionTag(raw json.RawMessage) *string {
	if isJSONNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	tag := compactJSON(raw)
	return &tag
}

// renderTransactionError formats the RPC error value in call form:
// {"InstructionError":[0,{"Custom":1}]} becomes InstructionError(0, Custom(1)).
func renderTransactionError(raw json.RawMessage) string {
	v, ok := decodeJSONValue(raw)
	if !ok {
		return string(raw)
	}
	return renderErrorValue(v)
}

func renderErrorValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = renderErrorValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		if len(t) == 1 {
			for name, inner := range t {
				switch iv := inner.(type) {
				case []any:
					parts := make([]string, len(iv))
					for i, e := range iv {
						parts[i] = renderErrorValue(e)
					}
					return name + "(" + strings.Join(parts, ", ") + ")"
				case map[string]any:
					return name + " " + renderErrorFields(iv)
				default:
					return name + "(" + renderErrorValue(iv) + ")"
				}
			}
		}
		return renderErrorFields(t)
	default:
		return fmt.Sprint(t)
	}
}

func renderErrorFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + renderErrorValue(fields[k])
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
