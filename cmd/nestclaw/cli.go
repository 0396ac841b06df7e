package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/client"
)

// console is the interactive Korean-language front end over the HTTP
// API. It keeps the acting identity for the session and sends it as
// assertion headers (or a bearer token when one is supplied).
type console struct {
	api    *client.Client
	in     *bufio.Scanner
	out    io.Writer
	actor  string
	role   string
	client func(actor, role string) *client.Client
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("cli", flag.ContinueOnError)
	flags.SetOutput(stderr)
	baseURL := flags.String("base-url", "http://127.0.0.1:8080", "server base URL")
	actor := flags.String("actor", "user_cli", "actor id")
	role := flags.String("role", auth.RoleRequester, "actor role")
	token := flags.String("token", "", "bearer token (overrides assertion headers)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	build := func(actorID, actorRole string) *client.Client {
		if *token != "" {
			return client.New(*baseURL, client.WithToken(*token))
		}
		return client.New(*baseURL, client.WithActor(actorID, actorRole))
	}

	c := &console{
		in:     bufio.NewScanner(stdin),
		out:    stdout,
		actor:  *actor,
		role:   auth.NormalizeRole(*role),
		client: build,
	}
	c.api = build(c.actor, c.role)
	return c.loop(*baseURL)
}

func (c *console) loop(baseURL string) int {
	fmt.Fprintln(c.out, "Local Work Delegation CLI")
	fmt.Fprintf(c.out, "- API: %s\n", baseURL)
	fmt.Fprintf(c.out, "- Actor ID: %s\n", c.actor)
	fmt.Fprintf(c.out, "- Actor Role: %s\n\n", c.role)

	for {
		fmt.Fprintln(c.out, "메뉴:")
		fmt.Fprintln(c.out, "1. 회의요약 작업 생성")
		fmt.Fprintln(c.out, "2. 작업 실행")
		fmt.Fprintln(c.out, "3. 상태 조회")
		fmt.Fprintln(c.out, "4. 이벤트 조회")
		fmt.Fprintln(c.out, "5. 승인 대기열")
		fmt.Fprintln(c.out, "6. 승인")
		fmt.Fprintln(c.out, "7. 반려")
		fmt.Fprintln(c.out, "8. 감사 요약")
		fmt.Fprintln(c.out, "9. 종료")

		choice, ok := c.prompt("선택")
		if !ok {
			return 0
		}
		switch choice {
		case "1":
			c.createTask()
		case "2":
			c.runTask()
		case "3":
			c.showStatus()
		case "4":
			c.showEvents()
		case "5":
			c.listApprovals()
		case "6":
			c.decide(true)
		case "7":
			c.decide(false)
		case "8":
			c.auditSummary()
		case "9":
			fmt.Fprintln(c.out, "종료합니다.")
			return 0
		default:
			fmt.Fprintln(c.out, "올바른 번호를 선택하세요.")
			fmt.Fprintln(c.out)
		}
	}
}

// prompt reads one trimmed line; ok is false on EOF.
func (c *console) prompt(label string) (string, bool) {
	fmt.Fprintf(c.out, "%s: ", label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// promptRequired repeats until a non-empty value arrives.
func (c *console) promptRequired(label string) (string, bool) {
	for {
		value, ok := c.prompt(label)
		if !ok {
			return "", false
		}
		if value != "" {
			return value, true
		}
		fmt.Fprintln(c.out, "필수 입력입니다.")
	}
}

func (c *console) createTask() {
	fmt.Fprintln(c.out, "\n[템플릿: 회의요약 -> 액션리스트]")
	meetingTitle, ok := c.promptRequired("회의 제목")
	if !ok {
		return
	}
	meetingDate, ok := c.promptRequired("회의 날짜 (YYYY-MM-DD)")
	if !ok {
		return
	}
	participantsRaw, ok := c.promptRequired("참석자 (쉼표로 구분)")
	if !ok {
		return
	}
	notes, ok := c.promptRequired("회의 메모")
	if !ok {
		return
	}
	requestedBy, ok := c.promptRequired("요청자 ID")
	if !ok {
		return
	}
	title, ok := c.prompt("작업 제목 (기본: 회의요약 생성)")
	if !ok {
		return
	}
	if title == "" {
		title = "회의요약 생성"
	}

	var participants []any
	for _, p := range strings.Split(participantsRaw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}

	// The session identity follows the requester so the ownership
	// check on later run/status calls passes.
	c.actor = requestedBy
	c.role = auth.RoleRequester
	c.api = c.client(c.actor, c.role)

	resp, err := c.api.CreateTask(client.CreateTaskRequest{
		Title:        title,
		TemplateType: "meeting_summary",
		Input: map[string]any{
			"meeting_title": meetingTitle,
			"meeting_date":  meetingDate,
			"participants":  participants,
			"notes":         notes,
		},
		RequestedBy: requestedBy,
	})
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, "\n[생성 완료]")
	fmt.Fprintf(c.out, "- Task ID: %s\n", resp.TaskID)
	fmt.Fprintf(c.out, "- 상태: %s\n\n", resp.Status)
}

func (c *console) runTask() {
	taskID, ok := c.promptRequired("실행할 Task ID")
	if !ok {
		return
	}
	idem, ok := c.prompt("idempotency_key (선택)")
	if !ok {
		return
	}

	resp, err := c.api.RunTask(client.RunTaskRequest{
		TaskID:         taskID,
		IdempotencyKey: idem,
		RunMode:        "standard",
	})
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, "\n[실행 접수]")
	fmt.Fprintf(c.out, "- Task ID: %s\n", resp.TaskID)
	fmt.Fprintf(c.out, "- 상태: %s\n\n", resp.Status)
}

func (c *console) showStatus() {
	taskID, ok := c.promptRequired("조회할 Task ID")
	if !ok {
		return
	}
	view, err := c.api.TaskStatus(taskID)
	if err != nil {
		c.printError(err)
		return
	}

	fmt.Fprintln(c.out, "\n[상태 보고]")
	fmt.Fprintf(c.out, "- Task ID: %s\n", view.TaskID)
	fmt.Fprintf(c.out, "- 현재 상태: %s\n", view.Status)
	fmt.Fprintf(c.out, "- 다음 액션: %s\n", view.NextAction)
	if view.Status == "NEEDS_HUMAN_APPROVAL" {
		fmt.Fprintf(c.out, "- 승인 필요 사유: %s\n", view.ApprovalReason)
		fmt.Fprintf(c.out, "- 승인 큐 ID: %s\n", view.ApprovalQueueID)
	}
	if view.Status == "DONE" {
		if view.Result != nil {
			fmt.Fprintf(c.out, "- 결과 파일: %s\n", view.Result.ReportPath)
		}
		if view.FinalReason != "" {
			fmt.Fprintf(c.out, "- 종료 사유: %s\n", view.FinalReason)
		}
	}
	if view.LastError != "" {
		fmt.Fprintf(c.out, "- 최근 오류: %s\n", view.LastError)
	}
	fmt.Fprintln(c.out)
}

func (c *console) showEvents() {
	taskID, ok := c.promptRequired("조회할 Task ID")
	if !ok {
		return
	}
	resp, err := c.api.TaskEvents(taskID)
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "\n[이벤트 %d건]\n", resp.Count)
	for _, ev := range resp.Items {
		fmt.Fprintf(c.out, "- %s %s", ev.CreatedAt, ev.EventType)
		if from, ok := ev.Fields["from_status"]; ok {
			fmt.Fprintf(c.out, " (%v -> %v)", from, ev.Fields["to_status"])
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out)
}

func (c *console) listApprovals() {
	resp, err := c.api.ListApprovals("PENDING", "")
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintf(c.out, "\n[승인 대기 %d건]\n", resp.Count)
	for _, item := range resp.Items {
		fmt.Fprintf(c.out, "- %s task=%s 사유=%s\n", item.QueueID, item.TaskID, item.ReasonCode)
	}
	fmt.Fprintln(c.out)
}

func (c *console) decide(approve bool) {
	queueID, ok := c.promptRequired("승인 큐 ID")
	if !ok {
		return
	}
	comment, ok := c.prompt("코멘트 (선택)")
	if !ok {
		return
	}

	req := client.DecisionRequest{ActedBy: c.actor, Comment: comment}
	var (
		resp *client.DecisionResponse
		err  error
	)
	if approve {
		resp, err = c.api.Approve(queueID, req)
	} else {
		resp, err = c.api.Reject(queueID, req)
	}
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, "\n[처리 완료]")
	fmt.Fprintf(c.out, "- 큐 상태: %s\n", resp.Status)
	fmt.Fprintf(c.out, "- 작업 상태: %s\n\n", resp.TaskStatus)
}

func (c *console) auditSummary() {
	sum, err := c.api.AuditSummary()
	if err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, "\n[감사 요약]")
	fmt.Fprintf(c.out, "- 전체 이벤트: %d\n", sum.TotalEvents)
	fmt.Fprintf(c.out, "- 정책 차단: %d\n", sum.BlockedPolicyEvents)
	fmt.Fprintf(c.out, "- 승인 대기: %d\n", sum.ApprovalsPending)
	fmt.Fprintf(c.out, "- 처리 완료: %d\n\n", sum.ApprovalsResolved)
}

func (c *console) printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(c.out, "- 오류: %s: %s\n\n", apiErr.Code, apiErr.Message)
		return
	}
	fmt.Fprintf(c.out, "- 오류: %v\n\n", err)
}
