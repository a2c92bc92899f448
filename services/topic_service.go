package services

import (
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"fest-event-system/models"

	"github.com/go-andiamo/splitter"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TopicService struct {
	DB *gorm.DB

	// pick chooses an index in [0, n); tests replace it.
	pick func(n int) int
}

func NewTopicService(db *gorm.DB) *TopicService {
	return &TopicService{DB: db, pick: rand.IntN}
}

// topicSplitter separates topics on ';' while keeping quoted text intact.
var topicSplitter = mustTopicSplitter()

func newTopicSplitter() (splitter.Splitter, error) {
	return splitter.NewSplitter(';', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
}

func mustTopicSplitter() splitter.Splitter {
	sp, err := newTopicSplitter()
	if err != nil {
		panic(fmt.Sprintf("topic splitter: %v", err))
	}
	return sp
}

// ParseTopics turns pasted text into topics: one per line, and lines may hold
// several topics separated by ';'. Quoted topics may contain ';'.
func ParseTopics(raw string) ([]string, error) {
	var topics []string
	seen := map[string]bool{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts, err := topicSplitter.Split(line)
		if err != nil {
			return nil, badRequest("could not parse topic line %q: %v", line, err)
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			p = strings.Trim(p, "\"“”")
			p = strings.TrimSpace(p)
			if p == "" || seen[strings.ToLower(p)] {
				continue
			}
			seen[strings.ToLower(p)] = true
			topics = append(topics, p)
		}
	}
	return topics, nil
}

type BulkTopicInput struct {
	SubEventID string   `json:"sub_event_id" validate:"required"`
	Topics     []string `json:"topics"`
	Text       string   `json:"text"`
}

// BulkCreate stores topics given as a list and/or pasted text.
func (s *TopicService) BulkCreate(in BulkTopicInput) ([]models.Topic, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var se models.SubEvent
	if err := s.DB.First(&se, "id = ?", in.SubEventID).Error; err != nil {
		return nil, lookupErr(err, "sub-event")
	}

	parsed, err := ParseTopics(in.Text + "\n" + strings.Join(in.Topics, "\n"))
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, badRequest("at least one topic is required")
	}

	topics := make([]models.Topic, 0, len(parsed))
	for _, content := range parsed {
		topics = append(topics, models.Topic{
			ID:         uuid.NewString(),
			SubEventID: se.ID,
			Content:    content,
		})
	}
	if err := s.DB.Create(&topics).Error; err != nil {
		return nil, dbErr(err, "failed to create topics")
	}
	log.Printf("✅ [TOPIC] Added %d topic(s) to %s", len(topics), se.Name)
	return topics, nil
}

func (s *TopicService) List(subEventID string, unusedOnly bool) ([]models.Topic, error) {
	q := s.DB.Where("sub_event_id = ?", subEventID).Order("created_at ASC")
	if unusedOnly {
		q = q.Where("is_used = ?", false)
	}
	var topics []models.Topic
	if err := q.Find(&topics).Error; err != nil {
		return nil, dbErr(err, "failed to list topics")
	}
	return topics, nil
}

// DrawTopic assigns a random unused topic of the group's sub-event to the group.
// A group that already holds a topic gets the same one back.
func (s *TopicService) DrawTopic(groupID string) (*models.Topic, error) {
	var group models.Group
	if err := s.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return nil, lookupErr(err, "group")
	}
	if group.TopicID != nil {
		var existing models.Topic
		if err := s.DB.First(&existing, "id = ?", *group.TopicID).Error; err == nil {
			return &existing, nil
		}
	}

	for attempt := 0; attempt < 5; attempt++ {
		var free []models.Topic
		if err := s.DB.Where("sub_event_id = ? AND is_used = ?", group.SubEventID, false).Find(&free).Error; err != nil {
			return nil, dbErr(err, "failed to load topics")
		}
		if len(free) == 0 {
			return nil, badRequest("no unused topics left for this sub-event")
		}
		topic := free[s.pick(len(free))]
		now := time.Now()

		claimed := false
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Topic{}).Where("id = ? AND is_used = ?", topic.ID, false).
				Updates(map[string]interface{}{
					"is_used":          true,
					"used_by_group_id": group.ID,
					"used_by_panel_id": group.PanelID,
					"used_at":          now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			claimed = true
			return tx.Model(&models.Group{}).Where("id = ?", group.ID).Update("topic_id", topic.ID).Error
		})
		if err != nil {
			return nil, dbErr(err, "failed to draw topic")
		}
		if claimed {
			topic.IsUsed = true
			topic.UsedByGroupID = &group.ID
			topic.UsedByPanelID = group.PanelID
			topic.UsedAt = &now
			log.Printf("🎲 [TOPIC] %s drew %q", group.Name, topic.Content)
			return &topic, nil
		}
	}
	return nil, conflict("topic draw raced with another group, retry")
}

// Reset marks every topic of a sub-event unused again and detaches them from groups.
func (s *TopicService) Reset(subEventID string) (int64, error) {
	var affected int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Topic{}).Where("sub_event_id = ? AND is_used = ?", subEventID, true).
			Updates(map[string]interface{}{
				"is_used":          false,
				"used_by_group_id": nil,
				"used_by_panel_id": nil,
				"used_at":          nil,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return tx.Model(&models.Group{}).Where("sub_event_id = ?", subEventID).Update("topic_id", nil).Error
	})
	if err != nil {
		return 0, dbErr(err, "failed to reset topics")
	}
	return affected, nil
}

func (s *TopicService) Delete(id string) error {
	var topic models.Topic
	if err := s.DB.First(&topic, "id = ?", id).Error; err != nil {
		return lookupErr(err, "topic")
	}
	if topic.IsUsed {
		return badRequest("topic is in use by a group; reset it first")
	}
	if err := s.DB.Delete(&models.Topic{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return nil
}
