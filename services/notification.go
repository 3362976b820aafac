package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"google.golang.org/api/option"

	"splitapp-backend/config"
	"splitapp-backend/models"
)

// NotificationService sends push notifications via Firebase Cloud Messaging
// and emails via SendGrid. Both channels are optional: missing credentials
// disable the channel without affecting the rest of the app.
type NotificationService struct {
	messaging *messaging.Client
	apiKey    string
	fromEmail string
	appName   string
	appURL    string
}

// NewNotificationService builds the service from AppConfig.
func NewNotificationService(ctx context.Context) *NotificationService {
	ns := &NotificationService{
		apiKey:    config.AppConfig.SendGridAPIKey,
		fromEmail: config.AppConfig.SendGridFrom,
		appName:   config.AppConfig.AppName,
		appURL:    config.AppConfig.AppURL,
	}

	credPath := config.AppConfig.FirebaseCredPath
	if _, err := os.Stat(credPath); err != nil {
		slog.Warn("firebase credentials not found, push notifications disabled", "path", credPath)
		return ns
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		slog.Warn("firebase init failed, push notifications disabled", "error", err)
		return ns
	}
	ns.messaging, err = app.Messaging(ctx)
	if err != nil {
		slog.Warn("firebase messaging init failed, push notifications disabled", "error", err)
	}
	return ns
}

func (ns *NotificationService) sendPush(ctx context.Context, fcmToken, title, body string, data map[string]string) {
	if ns.messaging == nil || fcmToken == "" {
		return
	}
	_, err := ns.messaging.Send(ctx, &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		slog.Warn("push notification failed", "error", err)
	}
}

func (ns *NotificationService) sendEmail(toEmail, toName, subject, htmlBody string) {
	if ns.apiKey == "" {
		slog.Debug("sendgrid api key not set, skipping email", "to", toEmail)
		return
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(ns.appName, ns.fromEmail),
		subject,
		mail.NewEmail(toName, toEmail),
		"",
		htmlBody,
	)
	resp, err := sendgrid.NewSendClient(ns.apiKey).Send(message)
	if err != nil {
		slog.Warn("email send failed", "to", toEmail, "error", err)
		return
	}
	if resp.StatusCode >= 300 {
		slog.Warn("sendgrid rejected email", "to", toEmail, "status", resp.StatusCode)
	}
}

// NotifyExpenseAdded pushes and emails every split participant except the payer.
func (ns *NotificationService) NotifyExpenseAdded(ctx context.Context, expense models.Expense, splits []models.ExpenseSplit, payer models.User, group models.Group, participants map[string]models.User) {
	for _, split := range splits {
		if split.UserID == expense.PaidBy {
			continue
		}
		user, ok := participants[split.UserID.String()]
		if !ok {
			continue
		}

		title := fmt.Sprintf("%s added an expense", payer.Name)
		body := fmt.Sprintf("You owe %s %.2f for \"%s\" in %s", expense.Currency, split.OwedAmount, expense.Description, group.Name)

		ns.sendPush(ctx, user.FCMToken, title, body, map[string]string{
			"type":       "expense_added",
			"expense_id": expense.ID.String(),
			"group_id":   expense.GroupID.String(),
		})

		htmlBody := fmt.Sprintf(
			`<p>Hi <strong>%s</strong>,</p>
<p><strong>%s</strong> added <strong>%s</strong> (%s %.2f) in <strong>%s</strong>.</p>
<p>Your share: <strong>%s %.2f</strong></p>
<p>— %s</p>`,
			user.Name, payer.Name, expense.Description, expense.Currency, expense.Amount,
			group.Name, expense.Currency, split.OwedAmount, ns.appName,
		)
		ns.sendEmail(user.Email, user.Name, title, htmlBody)
	}
}

// NotifySettlement informs the payee that a payment was recorded.
func (ns *NotificationService) NotifySettlement(ctx context.Context, settlement models.Settlement, payer, payee models.User, group models.Group) {
	title := fmt.Sprintf("%s paid you", payer.Name)
	body := fmt.Sprintf("%s recorded a payment of %.2f in %s", payer.Name, settlement.Amount, group.Name)

	ns.sendPush(ctx, payee.FCMToken, title, body, map[string]string{
		"type":     "settlement",
		"group_id": settlement.GroupID.String(),
	})

	htmlBody := fmt.Sprintf(
		`<p>Hi <strong>%s</strong>,</p>
<p><strong>%s</strong> recorded a payment of <strong>%.2f</strong> to you in <strong>%s</strong>.</p>
<p>— %s</p>`,
		payee.Name, payer.Name, settlement.Amount, group.Name, ns.appName,
	)
	ns.sendEmail(payee.Email, payee.Name, fmt.Sprintf("%s settled up with you in %s", payer.Name, group.Name), htmlBody)
}

// NotifyMemberAdded informs a user they were added to a group.
func (ns *NotificationService) NotifyMemberAdded(ctx context.Context, group models.Group, adder, newMember models.User) {
	title := fmt.Sprintf("You were added to \"%s\"", group.Name)
	body := fmt.Sprintf("%s added you to the group \"%s\"", adder.Name, group.Name)

	ns.sendPush(ctx, newMember.FCMToken, title, body, map[string]string{
		"type":     "member_added",
		"group_id": group.ID.String(),
	})

	htmlBody := fmt.Sprintf(
		`<p>Hi <strong>%s</strong>,</p>
<p><strong>%s</strong> added you to <strong>"%s"</strong>.</p>
<p>— %s</p>`,
		newMember.Name, adder.Name, group.Name, ns.appName,
	)
	ns.sendEmail(newMember.Email, newMember.Name, title, htmlBody)
}

// NotifyFriendRequest informs a user of a new friend request.
func (ns *NotificationService) NotifyFriendRequest(ctx context.Context, requester, target models.User) {
	title := fmt.Sprintf("%s added you as a friend", requester.Name)

	ns.sendPush(ctx, target.FCMToken, title, "Open the app to start splitting expenses", map[string]string{
		"type": "friend_request",
	})

	htmlBody := fmt.Sprintf(
		`<p>Hi <strong>%s</strong>,</p>
<p><strong>%s</strong> added you as a friend on %s.</p>
<p>— %s</p>`,
		target.Name, requester.Name, ns.appName, ns.appName,
	)
	ns.sendEmail(target.Email, target.Name, title, htmlBody)
}

// NotifyInvitation emails an invite to someone without an account yet.
func (ns *NotificationService) NotifyInvitation(email, inviterName, groupName string) {
	subject := fmt.Sprintf("%s invited you to join \"%s\" on %s", inviterName, groupName, ns.appName)
	htmlBody := fmt.Sprintf(
		`<p><strong>%s</strong> invited you to join <strong>"%s"</strong> on %s.</p>
<p><a href="%s">Join now</a></p>`,
		inviterName, groupName, ns.appName, ns.appURL,
	)
	ns.sendEmail(email, "", subject, htmlBody)
}
