package partners

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Multiple bool     `json:"multiple"`
	Options  []Option `json:"options"`
}

// Questions is the fixed first-impression questionnaire asked about a partner.
var Questions = []Question{
	{
		ID:   1,
		Text: "카카오톡 프로필 분위기",
		Options: []Option{
			{"1", "밝고 유쾌한 느낌(이모지/사진 활용)"},
			{"2", "깔끔하고 미니멀한 스타일"},
			{"3", "감성적이거나 분위기 있는 이미지"},
			{"4", "활동적인 느낌(여행/운동 사진 등)"},
			{"5", "딱히 꾸미지 않음 or 비공개"},
		},
	},
	{
		ID:   2,
		Text: "첫 인사 톤",
		Options: []Option{
			{"1", "말투가 부드럽고 공손한 편"},
			{"2", "쿨하고 간단한 스타일"},
			{"3", "다정하고 말 많은 편"},
			{"4", "밍밍하지만 나쁘지 않은 느낌"},
			{"5", "아직 판단하기 어려움"},
		},
	},
	{
		ID:   3,
		Text: "답장 템포",
		Options: []Option{
			{"1", "답장이 빠르고 자주 와요"},
			{"2", "일정한 간격으로 답해요"},
			{"3", "느리지만 성의는 느껴져요"},
			{"4", "느리고 건조한 느낌이에요"},
			{"5", "아직 잘 모르겠어요"},
		},
	},
	{
		ID:   4,
		Text: "예상되는 직업 or 학과 이미지",
		Options: []Option{
			{"1", "딱봐도 전문직 or 직무 강한 느낌"},
			{"2", "감성적이거나 예술계열 같음"},
			{"3", "활발하고 사교적인 직군으로 보여요"},
			{"4", "안정적이고 현실적인 느낌"},
			{"5", "아직 잘 모르겠어요"},
		},
	},
	{
		ID:   5,
		Text: "대화 주도권 스타일",
		Options: []Option{
			{"1", "주로 먼저 말을 걸어와요"},
			{"2", "리액션 위주로 답해줘요"},
			{"3", "질문을 잘 던지는 편이에요"},
			{"4", "묻지 않으면 조용한 편이에요"},
			{"5", "아직 잘 모르겠어요"},
		},
	},
}

func validOption(questionID int, optionID string) bool {
	for _, q := range Questions {
		if q.ID != questionID {
			continue
		}
		for _, o := range q.Options {
			if o.ID == optionID {
				return true
			}
		}
	}
	return false
}
