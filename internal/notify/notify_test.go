package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type recordingNotifier struct {
	got []Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notice) error {
	r.got = append(r.got, n)
	return nil
}

type fakeMessages struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

var (
	_ Notifier = (*Simulated)(nil)
	_ Notifier = (*Twilio)(nil)
	_ Notifier = (*Router)(nil)
)

func TestSimulated_NotifyHonoursContext(t *testing.T) {
	s := &Simulated{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Notify(ctx, Notice{Channel: ChannelEmail}); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() error = %v, want context.Canceled", err)
	}

	quick := &Simulated{}
	if err := quick.Notify(context.Background(), Notice{Channel: ChannelSMS, Recipient: "(11) 99999-9999", Body: "123456"}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestRouter(t *testing.T) {
	def := &recordingNotifier{}
	sms := &recordingNotifier{}
	r := &Router{Default: def, Channels: map[Channel]Notifier{ChannelSMS: sms}}

	_ = r.Notify(context.Background(), Notice{Channel: ChannelSMS})
	_ = r.Notify(context.Background(), Notice{Channel: ChannelEmail})

	if len(sms.got) != 1 || len(def.got) != 1 || def.got[0].Channel != ChannelEmail {
		t.Errorf("routing: sms=%v default=%v", sms.got, def.got)
	}
}

func TestTwilio_Notify(t *testing.T) {
	fake := &fakeMessages{}
	tw := &Twilio{api: fake, phoneFrom: "+15550001111", whatsappFrom: "+15550002222"}

	if err := tw.Notify(context.Background(), Notice{Channel: ChannelSMS, Recipient: "(11) 98765-4321", Body: "Código: 123456"}); err != nil {
		t.Fatalf("Notify(sms) error = %v", err)
	}
	if err := tw.SendWhatsApp(context.Background(), "(21) 3456-7890", "Oferta", "https://img/x.jpg"); err != nil {
		t.Fatalf("SendWhatsApp() error = %v", err)
	}
	if err := tw.Notify(context.Background(), Notice{Channel: ChannelEmail}); err == nil {
		t.Error("Notify(email) expected error")
	}

	if len(fake.params) != 2 {
		t.Fatalf("CreateMessage calls = %d, want 2", len(fake.params))
	}
	sms := fake.params[0]
	if *sms.To != "+5511987654321" || *sms.From != "+15550001111" || *sms.Body != "Código: 123456" {
		t.Errorf("sms params = to %s from %s body %s", *sms.To, *sms.From, *sms.Body)
	}
	wa := fake.params[1]
	if *wa.To != "whatsapp:+552134567890" || *wa.From != "whatsapp:+15550002222" {
		t.Errorf("whatsapp params = to %s from %s", *wa.To, *wa.From)
	}
	if wa.MediaUrl == nil || (*wa.MediaUrl)[0] != "https://img/x.jpg" {
		t.Errorf("whatsapp media = %v", wa.MediaUrl)
	}
}

func TestTwilio_PropagatesError(t *testing.T) {
	tw := &Twilio{api: &fakeMessages{err: errors.New("invalid number")}}
	if err := tw.SendWhatsApp(context.Background(), "+1", "x", ""); err == nil {
		t.Error("SendWhatsApp() expected error")
	}
}

func TestE164(t *testing.T) {
	tests := map[string]string{
		"(11) 98765-4321":         "+5511987654321",
		"(21) 3456-7890":          "+552134567890",
		"+1 (555) 000-1111":       "+15550001111",
		"whatsapp:+5511999999999": "+5511999999999",
	}
	for in, want := range tests {
		if got := E164(in); got != want {
			t.Errorf("E164(%q) = %q, want %q", in, got, want)
		}
	}
}
