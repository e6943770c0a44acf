package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/ruralpay/cartable/internal/config"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const MessageTypePacs008 = "pacs.008.001.08"

// BankAck is the bank's technical acknowledgement of a submitted credit transfer.
type BankAck struct {
	MessageID string
	Status    string
	Report    *pacs_v08.FIToFIPaymentStatusReportV08
}

// BankGateway delivers pacs.008 credit transfers to the bank.
type BankGateway interface {
	Submit(ctx context.Context, doc *pacs_v08.FIToFICustomerCreditTransferV08) (*BankAck, error)
}

// Pacs008Builder turns an approved payment order into a credit transfer message.
type Pacs008Builder struct {
	bic            string
	name           string
	clearingMember string
	now            func() time.Time
}

func NewPacs008Builder(cfg config.BankConfig) *Pacs008Builder {
	return &Pacs008Builder{
		bic:            cfg.BIC,
		name:           cfg.Name,
		clearingMember: cfg.ClearingMember,
		now:            time.Now,
	}
}

// Build creates one CdtTrfTxInf per line item, debiting the order's account.
func (b *Pacs008Builder) Build(order *models.PaymentOrder, account *models.Account) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if len(order.Items) == 0 {
		return nil, errs.Validation("order %s has no line items", order.ID)
	}

	creDtTm := b.now()
	settlementDate := creDtTm
	ccy := common.ActiveCurrencyCode(order.Currency)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(messageID()),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: common.Max15NumericText(strconv.Itoa(len(order.Items))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   ccy,
				Value: order.Total().InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
	}

	debtorBIC := common.BICFIDec2014Identifier(b.bic)
	debtorName := common.Max140Text(truncate(account.Title, 140))
	debtorAcct := ibanAccount(account.IBAN)
	for _, it := range order.Items {
		instrID := common.Max35Text(truncate(it.ID, 35))
		creditorName := common.Max140Text(truncate(it.BeneficiaryName, 140))
		doc.CdtTrfTxInf = append(doc.CdtTrfTxInf, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &instrID,
				EndToEndId: common.Max35Text(truncate(order.ID, 35)),
				TxId:       &instrID,
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   ccy,
				Value: it.Amount.InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &debtorBIC,
				},
			},
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &debtorName,
			},
			DbtrAcct: debtorAcct,
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
						MmbId: common.Max35Text(b.clearingMember),
					},
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &creditorName,
			},
			CdtrAcct: ibanAccount(it.DestinationIBAN),
		})
	}
	return doc, nil
}

func ibanAccount(iban string) *pacs_v08.CashAccount38 {
	if iban == "" {
		return nil
	}
	id := common.IBAN2007Identifier(iban)
	return &pacs_v08.CashAccount38{
		Id: pacs_v08.AccountIdentification4Choice{IBAN: &id},
	}
}

// StatusReport builds a pacs.002 report giving every transaction of doc the same status.
func StatusReport(doc *pacs_v08.FIToFICustomerCreditTransferV08, status string, at time.Time) *pacs_v08.FIToFIPaymentStatusReportV08 {
	report := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(messageID()),
			CreDtTm: common.ISODateTime(at),
		},
	}
	code := pacs_v08.ExternalPaymentTransactionStatus1Code(status)
	for _, tx := range doc.CdtTrfTxInf {
		endToEnd := tx.PmtId.EndToEndId
		report.TxInfAndSts = append(report.TxInfAndSts, pacs_v08.PaymentTransaction80{
			OrgnlInstrId:    tx.PmtId.InstrId,
			OrgnlEndToEndId: &endToEnd,
			OrgnlTxId:       tx.PmtId.TxId,
			TxSts:           &code,
		})
	}
	return report
}

// ConvertToXML converts ISO20022 document to XML string
func ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func messageID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// LogGateway stands in for the bank connection: it logs the message and accepts it.
type LogGateway struct {
	log *logging.Logger
	now func() time.Time
}

func NewLogGateway(logger *logging.Logger) *LogGateway {
	return &LogGateway{log: logger.Named("bank"), now: time.Now}
}

func (g *LogGateway) Submit(ctx context.Context, doc *pacs_v08.FIToFICustomerCreditTransferV08) (*BankAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	xmlData, err := ConvertToXML(doc)
	if err != nil {
		return nil, err
	}
	g.log.Debug("sending to settlement",
		zap.String("message_id", string(doc.GrpHdr.MsgId)),
		zap.String("message_type", MessageTypePacs008),
		zap.String("xml", xmlData),
	)
	return &BankAck{
		MessageID: string(doc.GrpHdr.MsgId),
		Status:    "ACTC",
		Report:    StatusReport(doc, "ACTC", g.now()),
	}, nil
}

// BreakerConfig tunes the circuit breaker in front of the bank.
type BreakerConfig struct {
	Name        string
	Timeout     time.Duration
	MaxFailures uint32
	Interval    time.Duration
	OpenTimeout time.Duration
}

func BreakerConfigFrom(cfg config.BankConfig) BreakerConfig {
	return BreakerConfig{
		Name:        "bank",
		Timeout:     cfg.Timeout,
		MaxFailures: cfg.MaxFailures,
		Interval:    cfg.BreakerInterval,
		OpenTimeout: cfg.BreakerTimeout,
	}
}

// BreakerGateway guards a BankGateway with a timeout and a circuit breaker.
type BreakerGateway struct {
	next    BankGateway
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	log     *logging.Logger
}

func NewBreakerGateway(next BankGateway, cfg BreakerConfig, collector metrics.Collector, logger *logging.Logger) *BreakerGateway {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	g := &BreakerGateway{
		next:    next,
		timeout: cfg.Timeout,
		metrics: collector,
		log:     logger.Named("bank_breaker"),
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			g.metrics.RecordCircuitState(name, state)
		},
	}
	g.cb = gobreaker.NewCircuitBreaker(settings)
	return g
}

func (g *BreakerGateway) Submit(ctx context.Context, doc *pacs_v08.FIToFICustomerCreditTransferV08) (*BankAck, error) {
	start := time.Now()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Submit(ctx, doc)
	})
	g.metrics.RecordBankSubmission(submissionResult(err), time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.log.Warn("circuit breaker open - submission rejected", zap.String("message_id", string(doc.GrpHdr.MsgId)))
			return nil, errs.ErrBankUnavailable
		}
		g.log.Error("bank submission failed", zap.String("message_id", string(doc.GrpHdr.MsgId)), zap.Error(err))
		return nil, errs.E(errs.KindTransient, errs.ErrBankUnavailable.Msg, err)
	}
	return result.(*BankAck), nil
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}

func submissionResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}
